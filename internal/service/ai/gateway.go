// Package ai provides the completion gateway: ask the hosted model for a
// reply, get back text, a rate-limit signal, or an error. The sync engine
// consults it only for the privileged deputy role.
package ai

import (
	"context"
	"errors"
)

// ErrRateLimited signals the gateway quota is exhausted. The caller shows a
// limit indicator and must not count the attempt against daily usage.
var ErrRateLimited = errors.New("completion gateway rate limited")

// SystemPrompt is the fixed preamble sent with every deputy request.
const SystemPrompt = "Ты полезный ассистент для заместителя. Отвечай кратко и по делу."

// CompletionProvider is the opaque "ask model, get answer" capability.
type CompletionProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
