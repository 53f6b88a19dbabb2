package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dhth/agx/internal/cancel"
)

// ErrInterrupted is returned by reads abandoned because of an interrupt.
var ErrInterrupted = errors.New("input interrupted")

type line struct {
	text string
	err  error
}

// Input reads lines from the user. Reads race the cancellation coordinator,
// so an interrupt unblocks a pending confirmation prompt.
type Input struct {
	out    io.Writer
	cancel *cancel.Coordinator

	once  sync.Once
	src   io.Reader
	lines chan line
}

// NewInput reads from r and writes prompts to out.
func NewInput(r io.Reader, out io.Writer, c *cancel.Coordinator) *Input {
	return &Input{
		out:    out,
		cancel: c,
		src:    r,
		lines:  make(chan line),
	}
}

func (in *Input) start() {
	in.once.Do(func() {
		go func() {
			defer close(in.lines)
			scanner := bufio.NewScanner(in.src)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
			for scanner.Scan() {
				in.lines <- line{text: scanner.Text()}
			}
			if err := scanner.Err(); err != nil {
				in.lines <- line{err: err}
			}
		}()
	})
}

// Prompt shows prompt and returns the next line. It implements
// permission.Prompter.
func (in *Input) Prompt(prompt string) (string, error) {
	fmt.Fprint(in.out, prompt)
	return in.read(in.cancel.Done())
}

// ReadLine clears any leftover interrupt, then shows prompt and returns the
// next line.
func (in *Input) ReadLine(prompt string) (string, error) {
	in.cancel.Reset()
	return in.Prompt(prompt)
}

func (in *Input) read(done <-chan struct{}) (string, error) {
	in.start()

	select {
	case l, ok := <-in.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	case <-done:
		fmt.Fprintln(in.out)
		return "", ErrInterrupted
	}
}
