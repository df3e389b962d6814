// Package vllm talks to an OpenAI-compatible serving endpoint (vLLM,
// llama-server) over plain HTTP. The response body is returned raw: the
// shapes these servers produce vary by model family and normalizing them is
// the extractor's job, not the transport's.
package vllm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"

	"github.com/mpetrov/iris/transport"
)

const (
	systemPrompt = "You are a helpful assistant."

	// noAuthKey disables the Authorization header, for local endpoints.
	noAuthKey = "EMPTY"

	maxResponseBytes = 1 << 20
)

type jsonmap map[string]any

// Sampling parameters tuned against small vision models served locally.
var defaultparams = jsonmap{
	"temperature":        0.35,
	"top_p":              0.8,
	"top_k":              10,
	"repetition_penalty": 1.8,
	"presence_penalty":   0.3,
	"frequency_penalty":  1.5,
	"max_tokens":         150,
}

type vllm struct {
	srvAddr string
	model   string
	apiKey  string

	client *http.Client
}

var _ transport.Client = &vllm{}

func Init(srvAddr, model, apiKey string, httpClient *http.Client) *vllm {
	return &vllm{
		srvAddr: srvAddr,
		model:   model,
		apiKey:  apiKey,
		client:  httpClient,
	}
}

func (v *vllm) Name() string { return "vllm" }

func (v *vllm) IsHealthy() bool {
	// vLLM exposes /health, llama-server only /v1/models. Either will do.
	for _, path := range []string{"/health", "/v1/models"} {
		resp, err := v.client.Get(v.srvAddr + path)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return true
		}
	}
	return false
}

func (v *vllm) Chat(ctx context.Context, turns []transport.Turn) (json.RawMessage, error) {
	// The system message lives on the wire only; conversation history holds
	// user and assistant turns exclusively.
	msgs := make([]jsonmap, 0, len(turns)+1)
	msgs = append(msgs, jsonmap{"role": "system", "content": systemPrompt})
	for _, t := range turns {
		msgs = append(msgs, encodeTurn(t))
	}

	data := maps.Clone(defaultparams)
	data["model"] = v.model
	data["messages"] = msgs
	data["stream"] = false

	buf := bytes.NewBuffer(make([]byte, 0, 2_000_000)) // The buffer will be resized by Encode
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&data); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.srvAddr+"/v1/chat/completions", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" && v.apiKey != noAuthKey {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat completion: %s: %s", resp.Status, truncate(body, 200))
	}

	return json.RawMessage(body), nil
}

func encodeTurn(t transport.Turn) jsonmap {
	parts := make([]jsonmap, 0, len(t.Content))
	for _, b := range t.Content {
		switch b.Type {
		case transport.BlockText:
			parts = append(parts, jsonmap{"type": "text", "text": b.Text})
		case transport.BlockImage:
			parts = append(parts, jsonmap{
				"type":      "image_url",
				"image_url": jsonmap{"url": dataURL(b)},
			})
		}
	}
	return jsonmap{"role": string(t.Role), "content": parts}
}

func dataURL(b transport.ContentBlock) string {
	return "data:" + b.MediaType + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
