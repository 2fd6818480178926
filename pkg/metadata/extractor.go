// Package metadata implements the Metadata Extractor (C1): a driver
// for a long-lived `exiftool -stay_open` child process, grounded
// directly on original_source/exiftool/src/lib.rs's protocol (the
// sentinel-echo/execute directive pair, the ready-counter matching
// loop, the stdout/stderr demultiplexing readers). Read calls are
// wrapped in a circuit breaker, and restart respawns the child with
// exponential backoff, both grounded on the teacher's
// internal/service/orchestration/service.go (its fallback circuit
// breaker + cenkalti/backoff retry loop). Nothing in this package calls
// restart: a child that exits or hangs is not respawned automatically.
package metadata

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	backoff "github.com/cenkalti/backoff/v4"
	cb "github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/ovacore/photonic/internal/apperr"
)

// Field is one parsed metadata entry: a human description, its
// (possibly structured) value, an optional raw/unconverted value, and
// — when the call asked for grouped output — the four-part group
// split spec §4.1 names.
type Field struct {
	Description      string
	Value            interface{}
	Raw              interface{}
	InformationType  string
	SpecificLocation string
	Category         string
	Format           string
}

type wireField struct {
	Description interface{} `json:"desc"`
	Value       interface{} `json:"val"`
	Raw         interface{} `json:"num"`
}

// line is one output line tagged with the stream it arrived on.
type line struct {
	isErr bool
	text  string
}

// Extractor owns one exiftool child process for the lifetime of the
// service. Calls are serialized: spec §4.1's protocol is inherently
// request-reply over one shared stdin/stdout/stderr set, so Read holds
// a single mutex across the entire round trip rather than
// multiplexing in-flight commands (spec §9: "the tool's protocol is
// inherently serial").
type Extractor struct {
	toolPath string
	log      *zap.Logger
	breaker  *cb.CircuitBreaker

	mu      sync.Mutex // serializes (stdin, counter, reply wait)
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	lines   chan line
	counter uint32
}

// New spawns the child process in "-stay_open" mode and waits for it
// to answer a version probe before returning, per spec §4.1 step 1
// ("run a sentinel-version command and require a non-zero success
// code before declaring ready" — exiftool's own convention is that
// `-ver` always succeeds, so readiness here means the round trip
// completed at all).
func New(ctx context.Context, toolPath string, log *zap.Logger) (*Extractor, error) {
	if toolPath == "" {
		toolPath = "exiftool"
	}

	e := &Extractor{
		toolPath: toolPath,
		log:      log,
		lines:    make(chan line, 32),
		breaker: cb.NewCircuitBreaker(cb.Settings{
			Name:        "metadata-extractor",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts cb.Counts) bool {
				return counts.ConsecutiveFailures > 3
			},
			OnStateChange: func(name string, from, to cb.State) {
				if log != nil {
					log.Warn("metadata extractor circuit breaker state change",
						zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
				}
			},
		}),
	}

	if err := e.spawn(ctx); err != nil {
		return nil, err
	}

	if _, err := e.send(ctx, "-ver"); err != nil {
		return nil, apperr.Wrap(apperr.KindToolUnavailable, "metadata tool failed version probe", err)
	}

	return e, nil
}

func (e *Extractor) spawn(_ context.Context) error {
	cmd := exec.Command(e.toolPath, "-stay_open", "true", "-@", "-")

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return apperr.Wrap(apperr.KindToolUnavailable, "open stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return apperr.Wrap(apperr.KindToolUnavailable, "open stdout pipe", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return apperr.Wrap(apperr.KindToolUnavailable, "open stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return apperr.Wrap(apperr.KindToolUnavailable, "spawn metadata tool", err)
	}

	e.cmd = cmd
	e.stdin = stdin
	go e.readLines(stdout, false)
	go e.readLines(stderr, true)

	return nil
}

func (e *Extractor) readLines(r io.Reader, isErr bool) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		e.lines <- line{isErr: isErr, text: strings.TrimSpace(scanner.Text())}
	}
}

// restart kills a wedged child and respawns it with exponential
// backoff, grounded on the teacher's orchestration fallback
// (cenkalti/backoff/v4 NewExponentialBackOff + Retry).
func (e *Extractor) restart(ctx context.Context) error {
	if e.cmd != nil && e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.MaxElapsedTime = 2 * time.Minute

	return backoff.Retry(func() error {
		return e.spawn(ctx)
	}, backoff.WithContext(expBackoff, ctx))
}

// send runs one round trip of spec §4.1's protocol: write the command
// plus its echo4/execute directives, then block until both sentinel
// lines for this call's counter have arrived.
func (e *Extractor) send(ctx context.Context, cmd string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.counter++
	n := e.counter
	wire := fmt.Sprintf("%s\n-echo4\n{ready%05d}=${status}\n-execute%05d\n", cmd, n, n)

	if _, err := io.WriteString(e.stdin, wire); err != nil {
		return "", apperr.Wrap(apperr.KindIoFailure, "write to metadata tool stdin", err)
	}

	ready := fmt.Sprintf("{ready%05d}", n)
	var okBuf, errBuf strings.Builder
	statusCode := -1
	readyCount := 0

	for readyCount < 2 {
		select {
		case l := <-e.lines:
			switch {
			case l.text == ready:
				readyCount++
			case strings.HasPrefix(l.text, ready):
				code, err := strconv.Atoi(l.text[len(ready)+1:])
				if err != nil {
					return "", apperr.Wrap(apperr.KindParseFailure, "parse metadata tool status code", err)
				}
				statusCode = code
				readyCount++
			case l.isErr:
				errBuf.WriteString(l.text)
			default:
				okBuf.WriteString(l.text)
				okBuf.WriteByte('\n')
			}
		case <-ctx.Done():
			return "", apperr.Wrap(apperr.KindIoFailure, "metadata tool call canceled", ctx.Err())
		}
	}

	if statusCode != 0 {
		return "", apperr.New(apperr.KindParseFailure, errBuf.String())
	}
	return okBuf.String(), nil
}

// Read drives `read(path, with_binary, with_groups)` (spec §4.1). It
// fails with ToolUnavailable while the circuit breaker is open,
// IoFailure if the command cannot be written to the child,
// InvalidPath on a non-UTF-8 path, FileMissing if the path does not
// exist, and ParseFailure on a non-zero tool status or a malformed
// reply.
func (e *Extractor) Read(ctx context.Context, path string, withBinary, withGroups bool) (map[string]Field, error) {
	if !utf8.ValidString(path) {
		return nil, apperr.New(apperr.KindInvalidPath, "path is not valid UTF-8")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.KindFileMissing, "file does not exist", err)
		}
		return nil, apperr.Wrap(apperr.KindIoFailure, "stat file", err)
	}

	var options strings.Builder
	if withBinary {
		options.WriteString("\n-b")
	}
	if withGroups {
		options.WriteString("\n-g:0:1:2:6")
	}
	cmd := fmt.Sprintf("\n-j\n-l\n-struct%s\n%s", options.String(), path)

	result, err := e.breaker.Execute(func() (interface{}, error) {
		return e.send(ctx, cmd)
	})
	if err != nil {
		if err == cb.ErrOpenState || err == cb.ErrTooManyRequests {
			return nil, apperr.Wrap(apperr.KindToolUnavailable, "metadata tool circuit open", err)
		}
		return nil, err
	}

	return parseReply(result.(string), withGroups)
}

// parseReply implements spec §4.1's parsing rule: the reply is a JSON
// array; take the first object; drop the SourceFile key; without
// groups, map each remaining key to a field; with groups, each
// top-level value is itself an object, flattened one level, with its
// group key split on ":" into (information_type, specific_location,
// category, format).
func parseReply(raw string, withGroups bool) (map[string]Field, error) {
	var docs []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return nil, apperr.Wrap(apperr.KindParseFailure, "metadata tool reply is not a JSON array", err)
	}
	if len(docs) == 0 {
		return nil, apperr.New(apperr.KindParseFailure, "metadata tool reply array is empty")
	}

	out := make(map[string]Field)
	for key, raw := range docs[0] {
		if key == "SourceFile" {
			continue
		}
		if !withGroups {
			f, err := decodeField(raw)
			if err != nil {
				return nil, err
			}
			out[key] = f
			continue
		}

		var group map[string]json.RawMessage
		if err := json.Unmarshal(raw, &group); err != nil {
			return nil, apperr.Wrap(apperr.KindParseFailure, "grouped metadata entry is not an object", err)
		}
		parts := strings.Split(key, ":")
		for gk, gv := range group {
			f, err := decodeField(gv)
			if err != nil {
				return nil, err
			}
			f.InformationType = partAt(parts, 0)
			f.SpecificLocation = partAt(parts, 1)
			f.Category = partAt(parts, 2)
			f.Format = partAt(parts, 3)
			out[gk] = f
		}
	}
	return out, nil
}

// partAt returns the trimmed i'th colon-separated part of a group key,
// or "" if that part is absent or blank (mirroring the Rust original's
// Option<String>-per-segment, where an empty segment becomes None).
func partAt(parts []string, i int) string {
	if i >= len(parts) {
		return ""
	}
	return strings.TrimSpace(parts[i])
}

func decodeField(raw json.RawMessage) (Field, error) {
	var wf wireField
	if err := json.Unmarshal(raw, &wf); err != nil {
		return Field{}, apperr.Wrap(apperr.KindParseFailure, "decode metadata field", err)
	}
	return Field{Description: fmt.Sprint(wf.Description), Value: wf.Value, Raw: wf.Raw}, nil
}

// Close sends the cooperative close directive and waits briefly for
// the child to exit, never blocking indefinitely (spec §4.1
// lifecycle).
func (e *Extractor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stdin != nil {
		_, _ = io.WriteString(e.stdin, "-stay_open\nfalse\n")
	}

	done := make(chan error, 1)
	go func() { done <- e.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		if e.cmd.Process != nil {
			_ = e.cmd.Process.Kill()
		}
		return apperr.New(apperr.KindIoFailure, "metadata tool did not exit after close directive")
	}
}
