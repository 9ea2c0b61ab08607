package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophdrive/internal/client/models"
	"github.com/dmitrijs2005/gophdrive/internal/client/objkey"
	"github.com/dmitrijs2005/gophdrive/internal/logging"
	"github.com/go-resty/resty/v2"
)

// RESTClient implements Auth, ObjectStore, Sharing and Groups over the
// backend HTTP API. Every request carries the token of the shared Session.
type RESTClient struct {
	http    *resty.Client
	session *Session
	log     logging.Logger
}

var (
	_ Auth        = (*RESTClient)(nil)
	_ ObjectStore = (*RESTClient)(nil)
	_ Sharing     = (*RESTClient)(nil)
	_ Groups      = (*RESTClient)(nil)
)

// NewRESTClient returns a client for the API rooted at baseURL. timeout
// bounds connecting and waiting for response headers; bodies are bounded by
// the request context only, so long transfers are not cut off. A zero
// timeout leaves requests bounded by their context only.
func NewRESTClient(baseURL string, timeout time.Duration, session *Session, log logging.Logger) *RESTClient {
	h := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		h.SetTransport(newTransport(timeout))
	}
	return &RESTClient{http: h, session: session, log: log}
}

func newTransport(timeout time.Duration) *http.Transport {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = timeout
	tr.ResponseHeaderTimeout = timeout
	return tr
}

// Backend returns a Backend served entirely by c.
func (c *RESTClient) Backend() Backend {
	return Backend{Auth: c, Objects: c, Sharing: c, Groups: c}
}

func (c *RESTClient) request(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if tok := c.session.Token(); tok != "" {
		r.SetAuthToken(tok)
	}
	return r
}

func (c *RESTClient) userPath(suffix string) (string, error) {
	id := c.session.UserID()
	if id == 0 {
		return "", ErrNoSession
	}
	return ownerPath(id, suffix), nil
}

func ownerPath(ownerID int64, suffix string) string {
	return fmt.Sprintf("/user/%d%s", ownerID, suffix)
}

// mapError converts a transport error or a non-2xx response to a sentinel
// error. The server message is appended when present.
func (c *RESTClient) mapError(resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !resp.IsError() {
		return nil
	}
	c.log.Warn(resp.Request.Context(), "backend request failed",
		"method", resp.Request.Method, "url", resp.Request.URL, "status", resp.StatusCode())
	return statusError(resp.StatusCode(), strings.TrimSpace(resp.String()))
}

func statusError(code int, msg string) error {
	var base error
	switch {
	case code == http.StatusUnauthorized:
		base = ErrUnauthorized
	case code == http.StatusForbidden:
		base = ErrForbidden
	case code == http.StatusNotFound:
		base = ErrNotFound
	case code == http.StatusConflict:
		base = ErrConflict
	case code >= http.StatusInternalServerError:
		base = ErrUnavailable
	default:
		base = ErrBadRequest
	}
	if msg == "" {
		return fmt.Errorf("%w (HTTP %d)", base, code)
	}
	return fmt.Errorf("%w: %s", base, msg)
}

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *RESTClient) authenticate(ctx context.Context, path, username, password string) (models.AuthResult, error) {
	var res models.AuthResult
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(credentialsBody{Username: username, Password: password}).
		SetResult(&res).
		Post(path)
	if err := c.mapError(resp, err); err != nil {
		return models.AuthResult{}, err
	}
	if res.Token == "" {
		return models.AuthResult{}, fmt.Errorf("%s: empty token in response", path)
	}
	return res, nil
}

func (c *RESTClient) Signup(ctx context.Context, username, password string) (models.AuthResult, error) {
	return c.authenticate(ctx, "/auth/signup", username, password)
}

func (c *RESTClient) Login(ctx context.Context, username, password string) (models.AuthResult, error) {
	return c.authenticate(ctx, "/auth/login", username, password)
}

func (c *RESTClient) RefreshToken(ctx context.Context) (string, error) {
	var res struct {
		Token string `json:"token"`
	}
	resp, err := c.request(ctx).SetResult(&res).Post("/auth/refresh-token")
	if err := c.mapError(resp, err); err != nil {
		return "", err
	}
	return res.Token, nil
}

func (c *RESTClient) ChangePassword(ctx context.Context, newPassword string) error {
	path, err := c.userPath("")
	if err != nil {
		return err
	}
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "text/plain").
		SetBody(newPassword).
		Put(path)
	return c.mapError(resp, err)
}

func (c *RESTClient) ListObjects(ctx context.Context) ([]models.FileObject, error) {
	path, err := c.userPath("/object")
	if err != nil {
		return nil, err
	}
	var out []models.FileObject
	resp, err := c.request(ctx).SetResult(&out).Get(path)
	if err := c.mapError(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RESTClient) CreateFolder(ctx context.Context, key string) error {
	path, err := c.userPath("/object/folder")
	if err != nil {
		return err
	}
	resp, err := c.request(ctx).SetQueryParam("folderName", key).Post(path)
	return c.mapError(resp, err)
}

func (c *RESTClient) RenameObject(ctx context.Context, key, newKey string) error {
	path, err := c.userPath("/object")
	if err != nil {
		return err
	}
	resp, err := c.request(ctx).
		SetQueryParam("objectKey", key).
		SetQueryParam("newName", newKey).
		Put(path)
	return c.mapError(resp, err)
}

func (c *RESTClient) DeleteObject(ctx context.Context, key string) error {
	path, err := c.userPath("/object")
	if err != nil {
		return err
	}
	resp, err := c.request(ctx).SetQueryParam("objectKey", key).Delete(path)
	return c.mapError(resp, err)
}

// Download streams the object into w and returns the file name announced by
// the server, falling back to the display name of key.
func (c *RESTClient) Download(ctx context.Context, ownerID int64, key string, w io.Writer) (string, error) {
	resp, err := c.request(ctx).
		SetDoNotParseResponse(true).
		SetHeader("Accept", "application/octet-stream").
		SetQueryParam("objectKey", key).
		Get(ownerPath(ownerID, "/object/download/stream"))
	if err != nil {
		return "", c.mapError(resp, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		c.log.Warn(ctx, "download failed", "key", key, "owner", ownerID, "status", resp.StatusCode())
		msg, _ := io.ReadAll(io.LimitReader(body, 4096))
		return "", statusError(resp.StatusCode(), strings.TrimSpace(string(msg)))
	}

	if _, err := io.Copy(w, body); err != nil {
		return "", fmt.Errorf("read download body: %w", err)
	}
	return attachmentName(resp.Header().Get("Content-Disposition"), key), nil
}

func attachmentName(header, key string) string {
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := objkey.DisplayName(params["filename"]); name != "" {
			return name
		}
	}
	return objkey.DisplayName(key)
}

func (c *RESTClient) PresignDownload(ctx context.Context, ownerID int64, key string) (string, error) {
	var res struct {
		PresignedURL string `json:"presignedUrl"`
	}
	resp, err := c.request(ctx).
		SetBody(map[string]string{"objectKey": key}).
		SetResult(&res).
		Post(ownerPath(ownerID, "/object/presign/download"))
	if err := c.mapError(resp, err); err != nil {
		return "", err
	}
	return res.PresignedURL, nil
}

// progressReader reports the running byte count after every read.
type progressReader struct {
	r  io.Reader
	n  int64
	fn func(int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.n += int64(n)
		if p.fn != nil {
			p.fn(p.n)
		}
	}
	return n, err
}

// Upload streams the form to the server while it is being written, so
// progress follows the bytes handed to the connection.
func (c *RESTClient) Upload(ctx context.Context, key, contentType string, r io.Reader, size int64, progress func(int64)) error {
	path, err := c.userPath("/object")
	if err != nil {
		return err
	}
	fields := [][2]string{{"filename", key}, {"mimetype", contentType}}
	req, done := c.streamForm(ctx, fields, objkey.DisplayName(key), contentType, &progressReader{r: r, fn: progress})
	defer done()
	resp, err := req.Post(path)
	return c.mapError(resp, err)
}

// streamForm returns a request whose multipart body is written through a
// pipe as the transport reads it. done must be called once the request has
// returned.
func (c *RESTClient) streamForm(ctx context.Context, fields [][2]string, filename, contentType string, file io.Reader) (*resty.Request, func()) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, fields, filename, contentType, file))
	}()
	req := c.request(ctx).
		SetHeader("Content-Type", mw.FormDataContentType()).
		SetBody(pr)
	return req, func() { _ = pr.Close() }
}

func writeForm(mw *multipart.Writer, fields [][2]string, filename, contentType string, file io.Reader) error {
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	return mw.Close()
}

func (c *RESTClient) InitiateMultipart(ctx context.Context, key, _ string) (string, error) {
	path, err := c.userPath("/object/multipart/start")
	if err != nil {
		return "", err
	}
	var res struct {
		UploadID string `json:"uploadId"`
	}
	resp, err := c.request(ctx).SetQueryParam("filename", key).SetResult(&res).Post(path)
	if err := c.mapError(resp, err); err != nil {
		return "", err
	}
	if res.UploadID == "" {
		return "", errors.New("multipart start: empty upload id")
	}
	return res.UploadID, nil
}

func (c *RESTClient) UploadPart(ctx context.Context, key, uploadID string, part int32, r io.Reader, _ int64) (string, error) {
	path, err := c.userPath("/object/multipart/upload")
	if err != nil {
		return "", err
	}
	var res struct {
		PartNumber int32  `json:"partNumber"`
		ETag       string `json:"eTag"`
	}
	fields := [][2]string{{"filename", key}, {"uploadId", uploadID}, {"partNumber", strconv.Itoa(int(part))}}
	req, done := c.streamForm(ctx, fields, objkey.DisplayName(key), "", r)
	defer done()
	resp, err := req.SetResult(&res).Post(path)
	if err := c.mapError(resp, err); err != nil {
		return "", err
	}
	return res.ETag, nil
}

type multipartBody struct {
	UploadID string `json:"uploadId"`
	Filename string `json:"filename"`
}

func (c *RESTClient) CompleteMultipart(ctx context.Context, key, uploadID string) error {
	return c.finishMultipart(ctx, "/object/multipart/complete", key, uploadID)
}

func (c *RESTClient) AbortMultipart(ctx context.Context, key, uploadID string) error {
	return c.finishMultipart(ctx, "/object/multipart/abort", key, uploadID)
}

func (c *RESTClient) finishMultipart(ctx context.Context, suffix, key, uploadID string) error {
	path, err := c.userPath(suffix)
	if err != nil {
		return err
	}
	resp, err := c.request(ctx).SetBody(multipartBody{UploadID: uploadID, Filename: key}).Post(path)
	return c.mapError(resp, err)
}

func (c *RESTClient) sharedEntries(ctx context.Context, suffix string) ([]models.SharedEntry, error) {
	path, err := c.userPath(suffix)
	if err != nil {
		return nil, err
	}
	var out []models.SharedEntry
	resp, err := c.request(ctx).SetResult(&out).Get(path)
	if err := c.mapError(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RESTClient) SharedByMe(ctx context.Context) ([]models.SharedEntry, error) {
	return c.sharedEntries(ctx, "/fileshare")
}

func (c *RESTClient) SharedToMe(ctx context.Context) ([]models.SharedEntry, error) {
	return c.sharedEntries(ctx, "/fileshare/received")
}

type shareBody struct {
	RecipientType models.RecipientType `json:"recipientType"`
	RecipientID   int64                `json:"recipientId"`
	Filename      string               `json:"filename"`
}

func (c *RESTClient) Share(ctx context.Context, recipient models.RecipientType, recipientID int64, key string) error {
	path, err := c.userPath("/fileshare")
	if err != nil {
		return err
	}
	resp, err := c.request(ctx).
		SetBody(shareBody{RecipientType: recipient, RecipientID: recipientID, Filename: key}).
		Post(path)
	return c.mapError(resp, err)
}

func (c *RESTClient) Unshare(ctx context.Context, shareID int64) error {
	path, err := c.userPath("/fileshare")
	if err != nil {
		return err
	}
	resp, err := c.request(ctx).
		SetBody(map[string]int64{"fileShareId": shareID}).
		Delete(path)
	return c.mapError(resp, err)
}

func (c *RESTClient) SearchUsers(ctx context.Context, prefix string) ([]models.User, error) {
	var out []models.User
	resp, err := c.request(ctx).SetQueryParam("prefix", prefix).SetResult(&out).Get("/user/search")
	if err := c.mapError(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RESTClient) ListGroups(ctx context.Context) ([]models.Group, error) {
	path, err := c.userPath("/group")
	if err != nil {
		return nil, err
	}
	var out []models.Group
	resp, err := c.request(ctx).SetResult(&out).Get(path)
	if err := c.mapError(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RESTClient) CreateGroup(ctx context.Context, name string) (models.Group, error) {
	path, err := c.userPath("/group")
	if err != nil {
		return models.Group{}, err
	}
	var g models.Group
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "text/plain").
		SetBody(name).
		SetResult(&g).
		Post(path)
	if err := c.mapError(resp, err); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

func (c *RESTClient) RenameGroup(ctx context.Context, groupID int64, name string) (models.Group, error) {
	path, err := c.userPath(fmt.Sprintf("/group/%d/name", groupID))
	if err != nil {
		return models.Group{}, err
	}
	var g models.Group
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "text/plain").
		SetBody(name).
		SetResult(&g).
		Put(path)
	if err := c.mapError(resp, err); err != nil {
		return models.Group{}, err
	}
	return g, nil
}

func (c *RESTClient) DeleteGroup(ctx context.Context, groupID int64) error {
	path, err := c.userPath(fmt.Sprintf("/group/%d", groupID))
	if err != nil {
		return err
	}
	resp, err := c.request(ctx).Delete(path)
	return c.mapError(resp, err)
}

func (c *RESTClient) Members(ctx context.Context, groupID int64) ([]models.User, error) {
	path, err := c.userPath(fmt.Sprintf("/group/%d/member", groupID))
	if err != nil {
		return nil, err
	}
	var out []models.User
	resp, err := c.request(ctx).SetResult(&out).Get(path)
	if err := c.mapError(resp, err); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *RESTClient) AddMember(ctx context.Context, groupID, userID int64) error {
	path, err := c.userPath(fmt.Sprintf("/group/%d", groupID))
	if err != nil {
		return err
	}
	resp, err := c.request(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(strconv.FormatInt(userID, 10)).
		Post(path)
	return c.mapError(resp, err)
}

func (c *RESTClient) RemoveMember(ctx context.Context, groupID, userID int64) error {
	path, err := c.userPath(fmt.Sprintf("/group/%d/member/%d", groupID, userID))
	if err != nil {
		return err
	}
	resp, err := c.request(ctx).Delete(path)
	return c.mapError(resp, err)
}
