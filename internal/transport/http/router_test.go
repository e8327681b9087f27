package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guardian/internal/authz"
	"guardian/internal/db"
	"guardian/internal/detector"
	"guardian/internal/domain"
	"guardian/internal/dto"
	"guardian/internal/media"
	"guardian/internal/service/impl"
	"guardian/internal/store"
	"guardian/internal/tokencipher"
)

type fixedDetector struct{ res detector.Result }

func (f fixedDetector) Detect(context.Context, string, detector.Options) (detector.Result, error) {
	return f.res, nil
}

func newTestServer(t *testing.T, det detector.Detector) http.Handler {
	t.Helper()

	gdb, err := db.OpenGorm(db.Config{DSN: fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", uuid.NewString())})
	require.NoError(t, err)
	st := store.New(gdb)
	require.NoError(t, st.AutoMigrate(context.Background()))

	root := t.TempDir()
	ms, err := media.New(root)
	require.NoError(t, err)
	c, err := tokencipher.New(bytes.Repeat([]byte("s"), tokencipher.KeySize))
	require.NoError(t, err)

	key := []byte("router-test-key")
	tokens := impl.NewTokenServiceHS256(impl.TokenConfig{
		Issuer: "guardian", Audience: "clients", AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningKey: key,
	}, st)
	pairing := impl.NewPairingServiceImpl(st, c)
	pw := impl.NewPasswordServiceWithParams(impl.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8})
	inbox := impl.NewInboxServiceImpl(st, ms)

	svc := Services{
		Accounts:  impl.NewAccountServiceImpl(st, pw, tokens, pairing, ms),
		Tokens:    tokens,
		Pairing:   pairing,
		Usage:     impl.NewUsageServiceImpl(st, ms),
		Screening: impl.NewScreeningServiceImpl(st, ms, det, inbox, detector.DefaultOptions()),
		Inbox:     inbox,
	}
	return NewRouter(svc, authz.NewHMACValidator(key, "guardian", "clients"), Options{MediaRoot: root, MaxUploadBytes: 1 << 20})
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func signup(t *testing.T, h http.Handler, username string, role domain.Role) dto.AuthResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/v1/auth/signup", "", dto.SignupRequest{
		Username: username, Password: "secret-pass", FirstName: "Name", LastName: "Test", Gender: "1", UserType: string(role),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res dto.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Code
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestServer(t, fixedDetector{})

	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesNeedBearerAndRole(t *testing.T) {
	h := newTestServer(t, fixedDetector{})
	child := signup(t, h, "kid", domain.RoleChild)

	rec := do(t, h, http.MethodGet, "/v1/account", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/children", child.AccessToken, dto.PairingRequest{Key: child.Child.PairingKey})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/account", child.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var acc dto.AccountView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
	assert.Equal(t, "kid", acc.Username)
	assert.Equal(t, "1", acc.UserType)
}

func TestPairingOverHTTP(t *testing.T) {
	h := newTestServer(t, fixedDetector{})
	child := signup(t, h, "kid", domain.RoleChild)
	parent := signup(t, h, "mom", domain.RoleParent)
	other := signup(t, h, "dad", domain.RoleParent)
	key := dto.PairingRequest{Key: child.Child.PairingKey}

	rec := do(t, h, http.MethodPost, "/v1/children", parent.AccessToken, key)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/v1/children", parent.AccessToken, key)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_linked_to_you", errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/v1/children", other.AccessToken, key)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_linked_to_other", errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/v1/children", parent.AccessToken, dto.PairingRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/v1/children/me", child.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var self dto.ChildView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &self))
	require.NotNil(t, self.Parent)
	assert.Equal(t, "Name", self.Parent.FirstName)

	rec = do(t, h, http.MethodDelete, "/v1/children", parent.AccessToken, key)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUsageOverHTTP(t *testing.T) {
	h := newTestServer(t, fixedDetector{})
	child := signup(t, h, "kid", domain.RoleChild)
	parent := signup(t, h, "mom", domain.RoleParent)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/children", parent.AccessToken, dto.PairingRequest{Key: child.Child.PairingKey}).Code)

	rec := do(t, h, http.MethodPost, "/v1/usage", child.AccessToken, `{"app1": 90, "app2": "30", "com.flet.child_app": 1000}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report struct {
		Percentages map[string]float64 `json:"usage_percentages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, map[string]float64{"app1": 75, "app2": 25}, report.Percentages)

	rec = do(t, h, http.MethodPost, "/v1/usage", child.AccessToken, `{"app1": "many"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", errorCode(t, rec))

	rec = do(t, h, http.MethodGet, "/v1/usage?child="+child.Account.ID, parent.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var apps []dto.AppUsage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apps))
	require.Len(t, apps, 2)
	assert.Equal(t, "01:30:00", apps[0].Duration)

	rec = do(t, h, http.MethodGet, "/v1/usage?child=nope", parent.AccessToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScreeningNotifiesParent(t *testing.T) {
	h := newTestServer(t, fixedDetector{res: detector.Result{Flagged: true, Confidence: 0.9, Label: "x"}})
	child := signup(t, h, "kid", domain.RoleChild)
	parent := signup(t, h, "mom", domain.RoleParent)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/v1/children", parent.AccessToken, dto.PairingRequest{Key: child.Child.PairingKey}).Code)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "shot.png")
	require.NoError(t, err)
	_, _ = fw.Write(img.Bytes())
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/v1/screening", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+child.AccessToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res dto.ScreeningResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Flagged)
	assert.Equal(t, "90.00%", res.ConfidenceText)

	rec = do(t, h, http.MethodGet, "/v1/captures", parent.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var captures []dto.CaptureView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &captures))
	require.Len(t, captures, 1)

	// flagged screenshots and temp copies are not reachable by path
	rec = do(t, h, http.MethodGet, "/media/"+captures[0].Image, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodGet, "/media/captures/", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodGet, "/media/"+media.TempScreenshotPath(uuid.MustParse(child.Account.ID), "png"), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodGet, "/media/profileImages/../temp_images/user_"+child.Account.ID+"_screenshot.png", "", nil)
	assert.NotEqual(t, http.StatusOK, rec.Code)

	imagePath := "/v1/captures/" + captures[0].ID + "/image"
	rec = do(t, h, http.MethodGet, imagePath, parent.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, img.Bytes(), rec.Body.Bytes())
	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodGet, imagePath, "", nil).Code)
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, imagePath, child.AccessToken, nil).Code)
	stranger := signup(t, h, "dad", domain.RoleParent)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, imagePath, stranger.AccessToken, nil).Code)

	rec = do(t, h, http.MethodGet, "/v1/inbox", parent.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var msgs []dto.InboxMessageView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 1)

	rec = do(t, h, http.MethodGet, "/v1/inbox", parent.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = do(t, h, http.MethodDelete, "/v1/captures/"+captures[0].ID, parent.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestProfileImagesArePublicMedia(t *testing.T) {
	h := newTestServer(t, fixedDetector{})
	mom := signup(t, h, "mom", domain.RoleParent)

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("Image", "me.png")
	require.NoError(t, err)
	_, _ = fw.Write(img.Bytes())
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/v1/account/image", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+mom.AccessToken)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var acc dto.AccountView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acc))
	require.NotEmpty(t, acc.ProfileImage)

	rec = do(t, h, http.MethodGet, "/media/"+acc.ProfileImage, "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, img.Bytes(), rec.Body.Bytes())
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/media/profileImages/", "", nil).Code)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.FieldError("x", "y"), http.StatusBadRequest},
		{detector.ErrImageDecode, http.StatusBadRequest},
		{domain.ErrUnknownAccount, http.StatusNotFound},
		{fmt.Errorf("%w: capture", domain.ErrNotFound), http.StatusNotFound},
		{domain.ErrAlreadyClaimedByOther, http.StatusConflict},
		{domain.ErrUsernameTaken, http.StatusConflict},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: %w", domain.ErrInvalidToken, tokencipher.ErrDecryption), http.StatusUnprocessableEntity},
		{detector.ErrDetectorUnavailable, http.StatusServiceUnavailable},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		got, _ := classify(tc.err)
		assert.Equal(t, tc.want, got, tc.err.Error())
	}
}

func TestInternalErrorsAreNotEchoed(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("pq: password authentication failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
}
