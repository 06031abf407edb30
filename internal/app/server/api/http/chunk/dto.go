package chunk

type getInput struct {
	ID string `path:"id" example:"A1" doc:"Chunk reference"`
}

type getOutput struct {
	Body getResponse
}

type getResponse struct {
	ResourceID    string  `json:"resource_id"`
	CompletedRows []int   `json:"completed_rows"`
	LastModified  *string `json:"last_modified"`
}
