// Package dummy provides scripted stand-ins for the chat, transcription and
// speech providers so the tutor can run offline and in tests.
//
// A script is a comma-separated list of actions consumed one per call; the
// last action repeats once the list is exhausted:
//
//	ok            default success
//	msg:<text>    succeed with <text>
//	msgb64:<b64>  succeed with base64-decoded text
//	err:<class>   fail with an error naming <class>
//	sleep:<ms>    wait, then succeed
//	break:<class> (synthesizer) emit one chunk, then end the stream with an error
package dummy

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	modelpkg "github.com/stupiduntilnot/ielts-tutor/internal/model"
)

type action struct {
	kind string
	arg  string
}

var prefixed = []string{"err", "sleep", "msg", "msgb64", "break"}

func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		if token == "ok" {
			actions = append(actions, action{kind: "ok"})
			continue
		}
		matched := false
		for _, kind := range prefixed {
			if strings.HasPrefix(token, kind+":") {
				actions = append(actions, action{kind: kind, arg: strings.TrimPrefix(token, kind+":")})
				matched = true
				break
			}
		}
		if !matched {
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

type scriptRunner struct {
	actions []action
	index   int
}

func newRunner(script string) (*scriptRunner, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &scriptRunner{actions: actions}, nil
}

func (r *scriptRunner) next() action {
	if len(r.actions) == 0 {
		return action{kind: "ok"}
	}
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

func sleep(ctx context.Context, arg string) error {
	ms, _ := strconv.Atoi(arg)
	if ms <= 0 {
		return nil
	}
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// text resolves msg/msgb64 actions to their payload.
func text(a action, fallback string) (string, error) {
	switch a.kind {
	case "msg":
		return a.arg, nil
	case "msgb64":
		raw, err := base64.StdEncoding.DecodeString(a.arg)
		if err != nil {
			return "", fmt.Errorf("dummy msgb64 decode failed: %w", err)
		}
		return string(raw), nil
	default:
		return fallback, nil
	}
}

// Provider is a scripted model.Provider that records every request.
type Provider struct {
	mu       sync.Mutex
	model    string
	script   *scriptRunner
	requests []modelpkg.Request
}

func NewProvider(model, script string) (*Provider, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Provider{model: model, script: runner}, nil
}

func (p *Provider) Generate(ctx context.Context, req modelpkg.Request) (modelpkg.CompletionResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	a := p.script.next()
	p.mu.Unlock()

	switch a.kind {
	case "err":
		return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider error class=%s", emptyAs(a.arg, "provider_api"))
	case "sleep":
		if err := sleep(ctx, a.arg); err != nil {
			return modelpkg.CompletionResponse{}, err
		}
		return modelpkg.CompletionResponse{Content: "dummy-after-sleep", InputTokens: 1, OutputTokens: 1}, nil
	}

	content, err := text(a, "dummy-ok")
	if err != nil {
		return modelpkg.CompletionResponse{}, err
	}
	return modelpkg.CompletionResponse{Content: content, InputTokens: 1, OutputTokens: 1}, nil
}

// Requests returns a copy of every request received so far.
func (p *Provider) Requests() []modelpkg.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]modelpkg.Request(nil), p.requests...)
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
