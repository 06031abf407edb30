package client

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/exp/slog"
	"golang.org/x/term"
)

// Resolution is what to do with a document whose push was rejected as
// stale.
type Resolution string

const (
	ResolutionKeepLocal  Resolution = "local"  // re-push with force
	ResolutionTakeRemote Resolution = "remote" // pull and overwrite local
	ResolutionSkip       Resolution = "skip"   // leave both sides alone
)

// ConflictResolver decides how to handle a version conflict for one
// document.
type ConflictResolver interface {
	Resolve(document string, localVersion, remoteVersion int) Resolution
}

// PolicyResolver always answers with a fixed resolution. Used for
// unattended syncs and the --force flag.
type PolicyResolver struct {
	resolution Resolution
}

func NewPolicyResolver(resolution Resolution) *PolicyResolver {
	return &PolicyResolver{resolution: resolution}
}

func (r *PolicyResolver) Resolve(string, int, int) Resolution {
	return r.resolution
}

// PromptResolver asks the user on the terminal. When stdin is not a
// terminal it degrades to skipping, so scripted runs never hang on a
// prompt.
type PromptResolver struct {
	in  *os.File
	out io.Writer
	log *slog.Logger
}

func NewPromptResolver(log *slog.Logger) *PromptResolver {
	return &PromptResolver{
		in:  os.Stdin,
		out: os.Stdout,
		log: log.With(slog.String("component", "conflict_prompt")),
	}
}

func (r *PromptResolver) Resolve(document string, localVersion, remoteVersion int) Resolution {
	if !term.IsTerminal(int(r.in.Fd())) {
		r.log.Warn("version conflict with no terminal attached, skipping",
			slog.String("document", document))
		return ResolutionSkip
	}

	color.New(color.FgYellow, color.Bold).Fprintf(r.out,
		"Version conflict on %s (local v%d, host v%d)\n",
		document, localVersion, remoteVersion)
	fmt.Fprintln(r.out, "  [l] keep local (overwrite host)")
	fmt.Fprintln(r.out, "  [r] take remote (overwrite local)")
	fmt.Fprintln(r.out, "  [s] skip")

	reader := bufio.NewReader(r.in)
	for {
		fmt.Fprint(r.out, "choice [l/r/s]: ")

		line, err := reader.ReadString('\n')
		if err != nil {
			return ResolutionSkip
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "l", "local":
			return ResolutionKeepLocal
		case "r", "remote":
			return ResolutionTakeRemote
		case "s", "skip", "":
			return ResolutionSkip
		}
	}
}
