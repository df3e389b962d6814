// Package iris is a conversational image-captioning adapter: it turns an
// uploaded image plus a rolling text dialogue into multimodal requests
// against an OpenAI-compatible model-serving API, keeps per-user
// conversation state across follow-ups, and normalizes the loosely-specified
// response shapes different backends return.
package iris

import (
	"fmt"
	"net/http"

	"github.com/mpetrov/iris/internal/openai"
	"github.com/mpetrov/iris/internal/vllm"
	"github.com/mpetrov/iris/transport"
)

// NoAuthKey is the sentinel API key meaning "no authentication", used by
// local serving endpoints.
const NoAuthKey = "EMPTY"

type InitOptions struct {
	// VLLMServer is the address of an OpenAI-compatible serving endpoint
	// (vLLM, llama-server), typically http://localhost:8000.
	VLLMServer string

	// OpenAI selects the hosted OpenAI API instead.
	OpenAI bool

	// Model is the model identifier to request.
	Model string

	// APIKey authenticates against the backend. NoAuthKey or empty means no
	// authentication.
	APIKey string

	HttpClient *http.Client // if nil uses http.DefaultClient
}

type Iris struct {
	transport.Client
}

// Init selects and configures exactly one serving backend.
func Init(iio InitOptions) (*Iris, error) {
	ir := &Iris{}

	httpClient := iio.HttpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var n int
	if iio.OpenAI {
		n++
	}
	if iio.VLLMServer != "" {
		n++
	}
	switch n {
	case 0:
		return nil, fmt.Errorf("no backend selected")
	case 1:
		// no-op
	default:
		return nil, fmt.Errorf("multiple backends selected, only one allowed")
	}

	if iio.OpenAI {
		ir.Client = openai.Init(iio.Model, iio.APIKey, httpClient)
	} else if iio.VLLMServer != "" {
		ir.Client = vllm.Init(iio.VLLMServer, iio.Model, iio.APIKey, httpClient)
	}

	return ir, nil
}
