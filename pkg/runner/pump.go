package runner

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

type inputResult struct {
	text string
	err  error
}

// linePump reads lines on a goroutine so that Input can honour cancellation.
type linePump struct {
	reader    *bufio.Reader
	inputChan chan inputResult
	startOnce sync.Once
}

func newLinePump(r io.Reader) *linePump {
	return &linePump{reader: bufio.NewReader(r)}
}

func (p *linePump) start() {
	p.startOnce.Do(func() {
		p.inputChan = make(chan inputResult)
		go p.pump()
	})
}

func (p *linePump) pump() {
	for {
		text, err := p.reader.ReadString('\n')

		// If we got text (even with EOF), send it
		if text != "" {
			p.inputChan <- inputResult{text: text}
		}

		if err != nil {
			if err == io.EOF {
				close(p.inputChan)
				return
			}
			p.inputChan <- inputResult{err: err}
			// Backoff for non-fatal errors to prevent CPU spikes on persistent failure
			time.Sleep(50 * time.Millisecond)
		}
	}
}

// next returns the next non-blank line, trimmed.
func (p *linePump) next(ctx context.Context) (string, error) {
	p.start()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res, ok := <-p.inputChan:
			if !ok {
				return "", io.EOF
			}
			if res.err != nil {
				return "", res.err
			}
			if line := strings.TrimSpace(res.text); line != "" {
				return line, nil
			}
		}
	}
}
