package auth

type authenticateInput struct {
	Body authenticateRequest
}

type authenticateRequest struct {
	Username string `json:"username" doc:"User identifier on the LAN" minLength:"1"`
	Secret   string `json:"secret,omitempty" doc:"Shared LAN secret, when the host requires one"`
}

type authenticateOutput struct {
	Body authenticateResponse
}

type authenticateResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}
