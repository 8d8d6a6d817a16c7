package hello

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// Register wires the root greeting route into the provided API router.
func Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-hello",
		Method:      http.MethodGet,
		Path:        "/",
		Summary:     "Say hello",
		Description: "Returns a fixed greeting. The response never varies.",
		Tags:        []string{"Hello"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Greeting",
				Content: map[string]*huma.MediaType{
					"text/html": {Schema: &huma.Schema{Type: huma.TypeString, Examples: []any{Greeting}}},
				},
			},
		},
	}, getHandler)
}

func getHandler(context.Context, *struct{}) (*GetOutput, error) {
	return &GetOutput{ContentType: ContentType, Body: []byte(Greeting)}, nil
}
