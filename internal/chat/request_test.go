package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want Request
	}{
		{name: "question and urls", body: `{"question":"Summarize","urls":["https://a.example","https://b.example"]}`,
			want: Request{Question: "Summarize", URLs: []string{"https://a.example", "https://b.example"}}},
		{name: "message alias", body: `{"message":"Hi"}`, want: Request{Question: "Hi"}},
		{name: "question wins over message", body: `{"question":"Q","message":"M"}`, want: Request{Question: "Q"}},
		{name: "blank question falls back", body: `{"question":"  ","message":"M"}`, want: Request{Question: "M"}},
		{name: "single url", body: `{"question":"Q","url":"https://a.example"}`,
			want: Request{Question: "Q", URLs: []string{"https://a.example"}}},
		{name: "urls beat url", body: `{"question":"Q","url":"https://x.example","urls":["https://a.example"]}`,
			want: Request{Question: "Q", URLs: []string{"https://a.example"}}},
		{name: "null urls", body: `{"question":"Q","urls":null}`, want: Request{Question: "Q"}},
		{name: "duplicates kept", body: `{"question":"Q","urls":["https://a.example","https://a.example"]}`,
			want: Request{Question: "Q", URLs: []string{"https://a.example", "https://a.example"}}},
		{name: "non-string element kept as json", body: `{"question":"Q","urls":[42]}`,
			want: Request{Question: "Q", URLs: []string{"42"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRequest([]byte(tc.body))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseRequestErrors(t *testing.T) {
	t.Parallel()

	_, err := ParseRequest([]byte(`{"question":`))
	require.ErrorIs(t, err, ErrMalformedBody)

	_, err = ParseRequest([]byte(`["not","an","object"]`))
	require.ErrorIs(t, err, ErrMalformedBody)

	_, err = ParseRequest([]byte(`{"question":"Q","urls":"https://a.example"}`))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, MsgURLsNotArray, verr.Message)

	_, err = ParseRequest([]byte(`{"urls":"https://a.example"}`))
	require.ErrorAs(t, err, &verr)
	require.Equal(t, MsgQuestionRequired, verr.Message)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	require.NoError(t, Validate(Request{Question: "Q"}))
	require.NoError(t, Validate(Request{Question: "Q", URLs: []string{"https://example.com/a?b=c", "http://localhost:8080"}}))

	for _, q := range []string{"", "   ", "\n\t"} {
		err := Validate(Request{Question: q, URLs: []string{"not-a-url"}})
		var verr *ValidationError
		require.True(t, errors.As(err, &verr))
		require.Equal(t, MsgQuestionRequired, verr.Message)
	}

	err := Validate(Request{Question: "Q", URLs: []string{"not-a-url", "https://ok.example", "/relative", "https://%zz"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "Invalid URLs: not-a-url, /relative, https://%zz", verr.Message)
	require.Equal(t, []string{"not-a-url", "/relative", "https://%zz"}, verr.InvalidURLs)
}

func TestIsAbsoluteURL(t *testing.T) {
	t.Parallel()

	require.True(t, IsAbsoluteURL("https://example.com"))
	require.True(t, IsAbsoluteURL("http://127.0.0.1:3000/path"))
	require.False(t, IsAbsoluteURL("example.com"))
	require.False(t, IsAbsoluteURL("mailto:someone@example.com"))
	require.False(t, IsAbsoluteURL(""))
	require.False(t, IsAbsoluteURL("://missing-scheme"))
}
