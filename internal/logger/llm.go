package logger

import (
	"io"
	"log"
	"strings"
	"sync"
)

var (
	llmMu          sync.Mutex
	llmLog         *log.Logger
	llmDumpPayload bool
)

// SetLLMWriter directs prompt/response dumps to w; nil disables them.
func SetLLMWriter(w io.Writer) {
	llmMu.Lock()
	defer llmMu.Unlock()
	if w == nil {
		llmLog = nil
		return
	}
	llmLog = log.New(w, "", log.LstdFlags)
}

// EnableLLMPayloadDump additionally records the raw request body of each call.
func EnableLLMPayloadDump(enabled bool) {
	llmMu.Lock()
	llmDumpPayload = enabled
	llmMu.Unlock()
}

type llmSection struct {
	title string
	body  string
}

func logLLM(kind, purpose string, sections []llmSection) {
	llmMu.Lock()
	l := llmLog
	llmMu.Unlock()
	if l == nil {
		return
	}
	var b strings.Builder
	b.WriteString("[LLM][" + kind + "]")
	if purpose != "" {
		b.WriteString("[" + purpose + "]")
	}
	b.WriteString("\n")
	for _, sec := range sections {
		t := strings.TrimSpace(sec.title)
		if t == "" {
			t = "CONTENT"
		}
		b.WriteString("--- " + t + " ---\n")
		b.WriteString(sec.body)
		if !strings.HasSuffix(sec.body, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("=====\n")
	l.Print(b.String())
}

func LogLLMRequest(purpose, systemPrompt, userPrompt, payload string) {
	sections := []llmSection{
		{title: "SYSTEM", body: systemPrompt},
		{title: "USER", body: userPrompt},
	}
	llmMu.Lock()
	dump := llmDumpPayload
	llmMu.Unlock()
	if dump && strings.TrimSpace(payload) != "" {
		sections = append(sections, llmSection{title: "PAYLOAD", body: payload})
	}
	logLLM("request", purpose, sections)
}

func LogLLMResponse(purpose, raw string) {
	logLLM("response", purpose, []llmSection{{title: "RAW", body: raw}})
}
