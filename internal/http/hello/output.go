package hello

// GetOutput is the raw greeting response. A []byte body is written as-is by huma,
// bypassing content negotiation.
type GetOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}
