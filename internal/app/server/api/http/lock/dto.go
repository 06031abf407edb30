package lock

type lockInput struct {
	Body lockRequest
}

type lockRequest struct {
	ResourceID string `json:"resource_id" doc:"Chunk reference to lock" minLength:"1"`
}

type acquireOutput struct {
	Body acquireResponse
}

type acquireResponse struct {
	Status     string `json:"status"`
	ResourceID string `json:"resource_id"`
	Locked     bool   `json:"locked"`
}

type releaseOutput struct {
	Body releaseResponse
}

type releaseResponse struct {
	Status     string `json:"status"`
	ResourceID string `json:"resource_id"`
	Released   bool   `json:"released"`
}
