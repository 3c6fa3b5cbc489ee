package anonymizer

import (
	"context"
	"encoding/json"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/llmshield/gateway/internal/logger"
	"github.com/llmshield/gateway/internal/vault"
)

// placeholderPattern matches a [TYPE_N] token, e.g. "[EMAIL_1]", "[BANK_ACCOUNT_12]".
var placeholderPattern = regexp.MustCompile(`\[[A-Z][A-Z_]*_\d+\]`)

// Deanonymize restores every placeholder in text that has a live mapping in
// sessionID's vault session. Placeholders with no mapping (expired session,
// unknown token, or text from a different session) are left untouched and
// collected in missing, rather than causing an error — a partially restored
// response is still useful to a caller, per the graceful-degradation
// contract for missing mappings.
func (a *Anonymizer) Deanonymize(ctx context.Context, text, sessionID string) (restored string, missing []string) {
	if sessionID == "" || text == "" {
		return text, nil
	}

	var restoredCount int
	out := placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		mapping, ok := a.vault.Get(sessionID, token)
		if !ok {
			missing = append(missing, token)
			return token
		}
		restoredCount++
		return mapping.Original
	})

	if restoredCount > 0 && a.tel != nil {
		a.tel.RecordTokensRestored(restoredCount)
	}
	if len(missing) > 0 {
		a.emit(vault.AuditEvent{Kind: "missing_mapping", SessionID: sessionID, EntityCount: len(missing), Timestamp: time.Now()})
	}
	return out, missing
}

// StreamingDeanonymize wraps src in a reader that restores placeholder
// tokens on the fly in an Anthropic-style SSE stream of
// content_block_delta/text_delta events. A single placeholder like
// [EMAIL_1] frequently arrives split across multiple text_delta events:
//
//	{"type":"content_block_delta","delta":{"type":"text_delta","text":"[EMAIL"}}
//	{"type":"content_block_delta","delta":{"type":"text_delta","text":"_1]"}}
//
// so replacing token-by-token within one event can never match. Instead,
// StreamingDeanonymize accumulates the text of consecutive text_delta
// events into a logical buffer; as soon as a non-text-delta event (or
// EOF) breaks the run, the accumulated text is restored in one pass and
// re-emitted as a single synthetic text_delta event. Lines that are not
// recognizable SSE text-delta events (pings, malformed JSON, anything
// else) are passed through verbatim once any pending accumulation is
// flushed.
//
// Mappings are looked up in the vault each time accumulated text is
// flushed; nothing is snapshotted up front, so if the session expires
// partway through the stream, later placeholders are simply left
// unreplaced (same as Deanonymize).
func (a *Anonymizer) StreamingDeanonymize(src io.ReadCloser, sessionID string) io.ReadCloser {
	if sessionID == "" {
		return src
	}

	pr, pw := io.Pipe()
	r := &streamingReplacer{vault: a.vault, sessionID: sessionID}
	go runStreamingDeanonymize(src, pw, r, a.log)
	return pr
}

// streamingReplacer resolves a placeholder token to its original value, or
// leaves it untouched on a miss, scoped to one StreamingDeanonymize call.
type streamingReplacer struct {
	vault     *vault.Vault
	sessionID string
}

func (r *streamingReplacer) replace(s string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(token string) string {
		if mapping, ok := r.vault.Get(r.sessionID, token); ok {
			return mapping.Original
		}
		return token
	})
}

type sseDelta struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

func runStreamingDeanonymize(src io.ReadCloser, pw *io.PipeWriter, r *streamingReplacer, log *logger.Logger) {
	defer src.Close()
	defer pw.Close()

	var lineBuf []byte
	var textAccum strings.Builder

	flush := func() {
		if textAccum.Len() == 0 {
			return
		}
		replaced := r.replace(textAccum.String())
		textAccum.Reset()
		synth := map[string]any{
			"type": "content_block_delta",
			"delta": map[string]string{
				"type": "text_delta",
				"text": replaced,
			},
		}
		b, err := json.Marshal(synth)
		if err != nil {
			return
		}
		pw.Write([]byte("data: ")) //nolint:errcheck
		pw.Write(b)                //nolint:errcheck
		pw.Write([]byte("\n\n"))   //nolint:errcheck
	}

	processLine := func(line []byte) {
		const dataPrefix = "data: "
		if !strings.HasPrefix(string(line), dataPrefix) {
			flush()
			if len(line) > 0 {
				pw.Write(line) //nolint:errcheck
			}
			pw.Write([]byte("\n")) //nolint:errcheck
			return
		}

		var evt sseDelta
		if err := json.Unmarshal(line[len(dataPrefix):], &evt); err != nil {
			flush()
			pw.Write(line)          //nolint:errcheck
			pw.Write([]byte("\n")) //nolint:errcheck
			return
		}
		if evt.Type == "content_block_delta" && evt.Delta.Type == "text_delta" {
			textAccum.WriteString(evt.Delta.Text)
			return
		}
		flush()
		pw.Write(line)          //nolint:errcheck
		pw.Write([]byte("\n")) //nolint:errcheck
	}

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for {
		n, readErr := src.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				line := lineBuf
				if len(line) > 0 && line[len(line)-1] == '\r' {
					line = line[:len(line)-1]
				}
				processLine(line)
				lineBuf = lineBuf[:0]
			} else {
				lineBuf = append(lineBuf, b)
			}
		}
		if readErr != nil {
			flush()
			if len(lineBuf) > 0 {
				pw.Write(lineBuf) //nolint:errcheck
			}
			if readErr != io.EOF {
				log.Errorf("streaming_deanonymize", "read error: %v", readErr)
				pw.CloseWithError(readErr) //nolint:errcheck
			}
			return
		}
	}
}
