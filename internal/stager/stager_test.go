package stager

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/budget-aggregator-web/internal/scratch"
)

type upload struct {
	name    string
	content string
}

func newUploadRequest(t *testing.T, uploads ...upload) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, u := range uploads {
		part, err := mw.CreateFormFile("sources[]", u.name)
		require.NoError(t, err)
		_, err = part.Write([]byte(u.content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.WriteField("format", "csv"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func isAllowed(b byte) bool {
	return allowed[b]
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "Haushalt 2023.xlsx", want: "_Haushalt 2023.xlsx"},
		{name: "unix path", in: "/home/user/plan.csv", want: "_plan.csv"},
		{name: "windows path", in: `C:\Users\kämmerer\plan.xls`, want: "_plan.xls"},
		{name: "umlauts dropped", in: "Ergebnisplan Gemeinde Müß.xlsx", want: "_Ergebnisplan Gemeinde M.xlsx"},
		{name: "shell characters dropped", in: "a`b|c\"d*e?f<g>h:i.csv", want: "_abcdefghi.csv"},
		{name: "punctuation kept", in: "!#$%&'()+,-.;=@[]^_{}~.csv", want: "_!#$%&'()+,-.;=@[]^_{}~.csv"},
		{name: "empty", in: "", want: "_"},
		{name: "only forbidden", in: "äöü", want: "_"},
		{name: "trailing slash", in: "dir/name/", want: "_name"},
		{name: "dot dot", in: "../../etc/passwd", want: "_passwd"},
		{name: "newline and nul", in: "a\nb\x00c.csv", want: "_abc.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestSanitize_Whitelist(t *testing.T) {
	var all []byte
	for c := 0; c < 256; c++ {
		if c == '/' || c == '\\' {
			continue
		}
		all = append(all, byte(c))
	}

	got := Sanitize(string(all))

	require.True(t, strings.HasPrefix(got, StagedPrefix))
	for i := 0; i < len(got); i++ {
		assert.True(t, isAllowed(got[i]), "byte %q must not survive", got[i])
	}
	assert.Len(t, got, len(StagedPrefix)+len(" !#$%&'()+,-.;=@[]^_{}~")+10+26+26)
}

func TestParseRequest(t *testing.T) {
	t.Run("multipart", func(t *testing.T) {
		req := newUploadRequest(t, upload{name: "a.csv", content: "1"})
		w := httptest.NewRecorder()

		require.NoError(t, ParseRequest(w, req, 1<<20, 1<<20))

		assert.Len(t, Headers(req), 1)
		assert.Equal(t, "csv", req.Form.Get("format"))
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("format=csv"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()

		require.NoError(t, ParseRequest(w, req, 1<<20, 1<<20))

		assert.Empty(t, Headers(req))
		assert.Equal(t, "csv", req.Form.Get("format"))
	})

	t.Run("body too large", func(t *testing.T) {
		req := newUploadRequest(t, upload{name: "a.csv", content: strings.Repeat("x", 4096)})
		w := httptest.NewRecorder()

		err := ParseRequest(w, req, 512, 1<<20)

		require.ErrorIs(t, err, ErrUpload)
	})

	t.Run("truncated body", func(t *testing.T) {
		req := newUploadRequest(t, upload{name: "a.csv", content: "1"})
		raw := new(bytes.Buffer)
		_, err := raw.ReadFrom(req.Body)
		require.NoError(t, err)
		req.Body = httptestBody(raw.Bytes()[:raw.Len()/2])
		w := httptest.NewRecorder()

		err = ParseRequest(w, req, 1<<20, 1<<20)

		require.ErrorIs(t, err, ErrUpload)
	})
}

func TestStage(t *testing.T) {
	dir, err := scratch.Acquire(t.TempDir())
	require.NoError(t, err)
	defer dir.Release()

	req := newUploadRequest(t,
		upload{name: "Haushalt 2023.xlsx", content: "first"},
		upload{name: "sub/Ergebnis;plan.csv", content: "second"},
	)
	require.NoError(t, ParseRequest(httptest.NewRecorder(), req, 0, 1<<20))

	files, err := Stage(dir, Headers(req))
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, dir.Join("_Haushalt 2023.xlsx"), files[0].Path)
	assert.Equal(t, "_Haushalt 2023.xlsx", files[0].Name())
	assert.Equal(t, "Haushalt 2023.xlsx", files[0].OriginalName)
	assert.Equal(t, dir.Join("_Ergebnis;plan.csv"), files[1].Path)

	content, err := os.ReadFile(files[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))
	content, err = os.ReadFile(files[1].Path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content))
}

func TestStage_DuplicateNames(t *testing.T) {
	dir, err := scratch.Acquire(t.TempDir())
	require.NoError(t, err)
	defer dir.Release()

	req := newUploadRequest(t,
		upload{name: "plan.csv", content: "1"},
		upload{name: "other/plan.csv", content: "2"},
		upload{name: "plän.csv", content: "3"},
	)
	require.NoError(t, ParseRequest(httptest.NewRecorder(), req, 0, 1<<20))

	files, err := Stage(dir, Headers(req))
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "_plan.csv", files[0].Name())
	assert.Equal(t, "_plan (2).csv", files[1].Name())
	assert.Equal(t, "_pln.csv", files[2].Name())

	entries, err := os.ReadDir(dir.Path())
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestStage_NoFiles(t *testing.T) {
	dir, err := scratch.Acquire(t.TempDir())
	require.NoError(t, err)
	defer dir.Release()

	_, err = Stage(dir, nil)
	require.ErrorIs(t, err, ErrNoFiles)
}

func TestStage_CopyFailure(t *testing.T) {
	dir, err := scratch.Acquire(t.TempDir())
	require.NoError(t, err)

	req := newUploadRequest(t, upload{name: "a.csv", content: "1"})
	require.NoError(t, ParseRequest(httptest.NewRecorder(), req, 0, 1<<20))

	// the directory disappears under the stager
	require.NoError(t, dir.Release())

	_, err = Stage(dir, Headers(req))
	require.ErrorIs(t, err, ErrUpload)
	assert.NoFileExists(t, filepath.Join(dir.Path(), "_a.csv"))
}

type byteBody struct {
	*bytes.Reader
}

func (byteBody) Close() error { return nil }

func httptestBody(b []byte) byteBody {
	return byteBody{bytes.NewReader(b)}
}
