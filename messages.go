package iris

import (
	"strings"

	"github.com/mpetrov/iris/transport"
)

// Fixed instructions appended to every prompt. Tuned against small vision
// models which otherwise ramble or echo themselves.
const (
	initialInstructions = `Be concise: answer in 1-3 short sentences, do not repeat yourself.
Also add three or four relevant tags (comma-separated) on a single line.`

	followUpInstructions = `Follow-up question about the previous image.
Be concise: answer in 1-2 short sentences, do not repeat yourself.
Don't repeat previous answers.
If the question is not related to the image, respond with 'I can only answer questions related to the image.'`
)

// MessageBuilder assembles the ordered turn sequences sent to the model.
type MessageBuilder struct{}

func NewMessageBuilder() *MessageBuilder {
	return &MessageBuilder{}
}

// BuildInitial produces the opening sequence for a conversation: exactly one
// user turn holding the augmented prompt followed by the image.
func (b *MessageBuilder) BuildInitial(prompt string, image []byte) []transport.Turn {
	text := strings.TrimSpace(prompt) + "\n" + initialInstructions
	return []transport.Turn{
		{
			Role: transport.RoleUser,
			Content: []transport.ContentBlock{
				transport.Text(text),
				transport.Image(image),
			},
		},
	}
}

// BuildFollowUp returns a copy of history with one new text-only user turn
// appended. The image is not re-attached: the model has already seen it in
// the first turn's context, and re-sending it would double token cost per
// follow-up. Very long chains may lose visual detail if the backend does not
// retain image context reliably; that is a documented limitation, not one
// worked around here.
func (b *MessageBuilder) BuildFollowUp(history []transport.Turn, prompt string) []transport.Turn {
	text := followUpInstructions + "\nQuestion: " + strings.TrimSpace(prompt)

	out := make([]transport.Turn, len(history), len(history)+1)
	copy(out, history)
	return append(out, transport.TextTurn(transport.RoleUser, text))
}
