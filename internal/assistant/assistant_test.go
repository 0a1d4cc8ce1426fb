package assistant

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type completerFunc func(ctx context.Context, prompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

func reply(s string) Completer {
	return completerFunc(func(context.Context, string) (string, error) { return s, nil })
}

func TestExtractCommand(t *testing.T) {
	var gotPrompt string
	c := completerFunc(func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return `{"recipient": "Jone", "message": "come at 4 pm today."}`, nil
	})

	cmd, err := ExtractCommand(context.Background(), c, "  Tell Jone to come at 4 pm today.  ")
	require.NoError(t, err)
	assert.Equal(t, Command{Recipient: "Jone", Message: "come at 4 pm today."}, cmd)
	assert.Contains(t, gotPrompt, `"Tell Jone to come at 4 pm today."`)
	assert.Contains(t, gotPrompt, "Respond ONLY in this exact JSON format")
}

func TestExtractCommandStripsFences(t *testing.T) {
	tests := map[string]string{
		"json fence":  "```json\n{\"recipient\":\"bob\",\"message\":\"hi\"}\n```",
		"plain fence": "```\n{\"recipient\":\"bob\",\"message\":\"hi\"}\n```",
		"bare":        "  {\"recipient\":\"bob\",\"message\":\"hi\"}\n",
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			cmd, err := ExtractCommand(context.Background(), reply(raw), "tell bob hi")
			require.NoError(t, err)
			assert.Equal(t, "bob", cmd.Recipient)
			assert.Equal(t, "hi", cmd.Message)
		})
	}
}

func TestExtractCommandIncomplete(t *testing.T) {
	for _, raw := range []string{
		`{"recipient": "bob"}`,
		`{"message": "hi"}`,
		`{"recipient": "  ", "message": "hi"}`,
	} {
		_, err := ExtractCommand(context.Background(), reply(raw), "tell bob hi")
		assert.ErrorIs(t, err, ErrIncompleteReply, raw)
	}
}

func TestExtractCommandUnparseable(t *testing.T) {
	_, err := ExtractCommand(context.Background(), reply("Sure! Bob should get: hi"), "tell bob hi")
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "Sure! Bob should get: hi", perr.Raw)
}

func TestExtractCommandEmptyInput(t *testing.T) {
	c := completerFunc(func(context.Context, string) (string, error) {
		t.Fatal("completer should not be called")
		return "", nil
	})
	_, err := ExtractCommand(context.Background(), c, "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestExtractCommandCompleterError(t *testing.T) {
	boom := errors.New("quota exceeded")
	c := completerFunc(func(context.Context, string) (string, error) { return "", boom })
	_, err := ExtractCommand(context.Background(), c, "tell bob hi")
	assert.ErrorIs(t, err, boom)
}

func TestFormatForSpeech(t *testing.T) {
	var gotPrompt string
	c := completerFunc(func(_ context.Context, prompt string) (string, error) {
		gotPrompt = prompt
		return "  Alice says the meeting moved to noon.\n", nil
	})

	text, err := FormatForSpeech(context.Background(), c, "alice", "meeting moved to noon")
	require.NoError(t, err)
	assert.Equal(t, "Alice says the meeting moved to noon.", text)
	assert.True(t, strings.Contains(gotPrompt, "Sender: alice"))
	assert.True(t, strings.Contains(gotPrompt, "Message: meeting moved to noon"))
}

func TestFormatForSpeechFallback(t *testing.T) {
	boom := errors.New("unavailable")
	text, err := FormatForSpeech(context.Background(),
		completerFunc(func(context.Context, string) (string, error) { return "", boom }),
		"alice", "hi")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "alice tells hi", text)

	text, err = FormatForSpeech(context.Background(), reply("   "), "alice", "hi")
	require.NoError(t, err)
	assert.Equal(t, "alice tells hi", text)

	text, err = FormatForSpeech(context.Background(), nil, "alice", "hi")
	require.NoError(t, err)
	assert.Equal(t, "alice tells hi", text)
}
