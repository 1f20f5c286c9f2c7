package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// Writer buffers listing output in a strings.Builder.
// When the Flush or Close method is called the buffer is emptied and sent to
// the assigned output writer through channel c.
type Writer struct {
	sb strings.Builder
	c  chan string
}

// ---------------------
// ----- Constants -----
// ---------------------

// stdinTimeout is how long ReadSource waits for input on stdin.
const stdinTimeout = 500 * time.Millisecond

// -------------------
// ----- globals -----
// -------------------

var wc chan string   // Write channel used for receiving data from writers.
var cc chan struct{} // Close channel used by main thread to signal to end write operations.
var dc chan error    // Done channel, receives the first write error (or nil) when the listener stops.

// ---------------------
// ----- Functions -----
// ---------------------

// Write writes a format string to the Writer's buffer.
func (w *Writer) Write(format string, args ...interface{}) {
	w.sb.WriteString(fmt.Sprintf(format, args...))
}

// WriteString writes s verbatim to the Writer's buffer.
func (w *Writer) WriteString(s string) {
	w.sb.WriteString(s)
}

// Ins writes a one-line instruction, indented by a tab.
func (w *Writer) Ins(ins string) {
	w.sb.WriteString(fmt.Sprintf("\t%s\n", ins))
}

// Label writes a one-line label with the given name.
func (w *Writer) Label(name string) {
	w.sb.WriteString(fmt.Sprintf("%s\n", name))
}

// Flush empties the Writer's buffer and sends the buffer data to the
// designated output writer over the Writer's channel.
func (w *Writer) Flush() {
	if w.sb.Len() == 0 {
		return
	}
	w.c <- w.sb.String()
	w.sb = strings.Builder{}
}

// Close flushes the Writer's buffer and detaches the Writer from the listener.
func (w *Writer) Close() {
	w.Flush()
	w.c = nil
}

// NewWriter returns a new Writer to be used by worker threads to write strings concurrently to the output buffer.
// Must not be called before main thread has called ListenWrite.
func NewWriter() Writer {
	return Writer{
		sb: strings.Builder{},
		c:  wc,
	}
}

// ReadSource reads the compilation unit from file or stdin.
// If the Options structure holds a path the file will be opened and read.
// Else the function waits for a short period for input on stdin. If no input on stdin is
// provided the function returns an error.
func ReadSource(opt Options) (string, error) {
	if len(opt.Src) > 0 {
		b, err := os.ReadFile(opt.Src)
		return string(b), err
	}

	c := make(chan string)
	cerr := make(chan error, 1)

	// Concurrently wait for input on stdin.
	go func(c chan string, cerr chan error) {
		b, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			cerr <- err
			return
		}
		c <- string(b)
	}(c, cerr)

	// Select between input from stdin or timer expiry.
	select {
	case <-time.After(stdinTimeout):
		return "", errors.New("expected input from stdin, got none")
	case err := <-cerr:
		return "", err
	case s := <-c:
		if len(s) == 0 {
			return "", errors.New("expected input from stdin, got none")
		}
		return s, nil
	}
}

// ListenWrite listens for writer outputs. The received data is written to w, or
// stdout if w is nil. The listener runs until Close is called. t is the number of
// writers expected to send concurrently and sizes the channel buffer.
func ListenWrite(t int, w io.Writer) {
	if t < 1 {
		t = 1
	}
	if w == nil {
		w = os.Stdout
	}
	wc = make(chan string, t)
	cc = make(chan struct{}, 1) // Buffered to catch Close before the listener is scheduled.
	dc = make(chan error, 1)
	bw := bufio.NewWriter(w)

	go func(wc chan string, cc chan struct{}, dc chan error) {
		var werr error
		write := func(s string) {
			if _, err := bw.WriteString(s); err != nil && werr == nil {
				werr = err
			}
		}
		for {
			select {
			case s := <-wc:
				write(s)
			case <-cc:
				// Drain what writers sent before Close.
				for {
					select {
					case s := <-wc:
						write(s)
					default:
						if err := bw.Flush(); err != nil && werr == nil {
							werr = err
						}
						dc <- werr
						return
					}
				}
			}
		}
	}(wc, cc, dc)
}

// Close sends the termination signal to the writer listener and waits for it to
// flush. It returns the first error encountered while writing. Close is a no-op
// when no listener is running.
func Close() error {
	if cc == nil {
		return nil
	}
	cc <- struct{}{}
	err := <-dc
	cc = nil
	return err
}
