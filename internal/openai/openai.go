// Package openai is the hosted-OpenAI chat backend.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/mpetrov/iris/transport"
)

const systemPrompt = "You are a helpful assistant."

type openai struct {
	oac   *oagc.Client
	model string
	rl    *limiter // hosted API, so every call goes through the limiter
}

var _ transport.Client = &openai{}

func Init(model, apiKey string, httpClient *http.Client) *openai {
	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if apiKey != "" && apiKey != "EMPTY" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	return &openai{
		oac:   oagc.NewClient(opts...),
		model: model,
		rl:    newLimiter(20, time.Minute),
	}
}

func (o *openai) Name() string { return "openai" }

func (o *openai) IsHealthy() bool {
	// Key validity is only provable by making a billable request.
	return true
}

func (o *openai) Chat(ctx context.Context, turns []transport.Turn) (json.RawMessage, error) {
	if err := o.rl.Wait(ctx); err != nil {
		return nil, err
	}

	msgs := make([]oagc.ChatCompletionMessageParamUnion, 0, len(turns)+1)
	msgs = append(msgs, oagc.SystemMessage(systemPrompt))
	for _, t := range turns {
		msgs = append(msgs, encodeTurn(t))
	}

	resp, err := o.oac.Chat.Completions.New(ctx, oagc.ChatCompletionNewParams{
		Model:       oagc.F(oagc.ChatModel(o.model)),
		Messages:    oagc.F(msgs),
		MaxTokens:   oagc.Int(150),
		Temperature: oagc.Float(0.35),
	})
	if err != nil {
		return nil, err
	}

	// Hand back the raw payload so the extractor owns shape handling, same
	// as the self-hosted backend.
	return json.RawMessage(resp.JSON.RawJSON()), nil
}

func encodeTurn(t transport.Turn) oagc.ChatCompletionMessageParamUnion {
	if t.Role == transport.RoleAssistant {
		return oagc.AssistantMessage(t.Text())
	}
	if !t.HasImage() {
		return oagc.UserMessage(t.Text())
	}

	parts := make([]oagc.ChatCompletionContentPartUnionParam, 0, len(t.Content))
	for _, b := range t.Content {
		switch b.Type {
		case transport.BlockText:
			parts = append(parts, oagc.TextPart(b.Text))
		case transport.BlockImage:
			url := "data:" + b.MediaType + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
			parts = append(parts, oagc.ImagePart(url))
		}
	}
	return oagc.UserMessageParts(parts...)
}
