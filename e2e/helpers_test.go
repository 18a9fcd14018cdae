package e2e_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/require"

	"github.com/clayloft/kilncat"
	"github.com/clayloft/kilncat/auth"
	"github.com/clayloft/kilncat/database"
	"github.com/clayloft/kilncat/filesystem"
	kilnhttp "github.com/clayloft/kilncat/http"
)

const (
	testIssuer   = "https://issuer.example.com"
	testAudience = "kilncat"
)

// tokenMint signs bearer tokens for test users and serves the matching
// public key set.
type tokenMint struct {
	key *rsa.PrivateKey
	kid string
	srv *httptest.Server
}

func newTokenMint(t *testing.T) *tokenMint {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	m := &tokenMint{key: key, kid: "key-1"}

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	pemData := string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))

	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_ = json.NewEncoder(w).Encode(map[string]string{m.kid: pemData})
	}))
	t.Cleanup(m.srv.Close)

	return m
}

func (m *tokenMint) token(t *testing.T, sub string) string {
	t.Helper()
	return m.tokenExpiring(t, sub, time.Now().Add(time.Hour))
}

func (m *tokenMint) tokenExpiring(t *testing.T, sub string, exp time.Time) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub":   sub,
		"email": sub + "@example.com",
		"iss":   testIssuer,
		"aud":   testAudience,
		"exp":   exp.Unix(),
		"iat":   time.Now().Add(-time.Minute).Unix(),
	})
	tok.Header["kid"] = m.kid

	raw, err := tok.SignedString(m.key)
	require.NoError(t, err)
	return raw
}

// stack is a fully wired server: sqlite metadata, filesystem blobs, token
// verification against the mint's key server.
type stack struct {
	srv  *httptest.Server
	mint *tokenMint
	repo kilncat.MetadataRepo
}

func newStack(t *testing.T) *stack {
	t.Helper()

	ctx := t.Context()
	mint := newTokenMint(t)

	repo, closeDB, err := database.Connect(ctx, database.Config{
		Type: "sqlite",
		DSN:  filepath.Join(t.TempDir(), "kilncat.db"),
		Tables: kilncat.Tables{
			Items:    "items",
			Photos:   "photos",
			Profiles: "profiles",
		},
	})
	require.NoError(t, err)
	t.Cleanup(closeDB)

	root, err := os.OpenRoot(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })

	signer, err := kilncat.NewURLSigner("e2e-signing-secret")
	require.NoError(t, err)

	blobs, err := filesystem.NewBlobStore(root, signer, "http://localhost:8080")
	require.NoError(t, err)

	service, err := kilncat.NewCatalogService(repo, blobs, kilncat.ServiceConfig{
		SignedURLTTL: time.Minute,
	})
	require.NoError(t, err)

	verifier, err := auth.NewVerifier(auth.Config{
		KeysURL:  mint.srv.URL,
		Issuer:   testIssuer,
		Audience: testAudience,
	})
	require.NoError(t, err)

	handler := kilnhttp.NewHandler(&kilnhttp.HandlerConfig{}, service, blobs, signer, verifier)
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)

	return &stack{srv: srv, mint: mint, repo: repo}
}

// do issues a request with the given bearer token and decodes a JSON reply
// into out when out is non-nil.
func (s *stack) do(t *testing.T, method, path, token string, body io.Reader, contentType string, out any) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, s.srv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func photoUpload(t *testing.T, fileName, contentType, content, stage, note string) (io.Reader, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := map[string][]string{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName)},
		"Content-Type":        {contentType},
	}
	part, err := w.CreatePart(header)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)

	require.NoError(t, w.WriteField("stage", stage))
	require.NoError(t, w.WriteField("note", note))
	require.NoError(t, w.Close())

	return &buf, w.FormDataContentType()
}
