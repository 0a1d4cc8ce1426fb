package assistant

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrNoSpeech = errors.New("nothing recognized")

// ConsoleListener reads one line per Listen call.
type ConsoleListener struct {
	In     *bufio.Reader
	Out    io.Writer
	Prompt string
}

func NewConsoleListener(in io.Reader, out io.Writer) *ConsoleListener {
	return &ConsoleListener{In: bufio.NewReader(in), Out: out, Prompt: "> "}
}

func (l *ConsoleListener) Listen(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.Prompt != "" && l.Out != nil {
		fmt.Fprint(l.Out, l.Prompt)
	}
	line, err := l.In.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ErrNoSpeech
	}
	return line, nil
}

// ConsoleSpeaker writes each utterance as a line.
type ConsoleSpeaker struct {
	Out io.Writer
}

func (s ConsoleSpeaker) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(s.Out, text)
	return err
}
