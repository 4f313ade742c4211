package web

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/JonMunkholm/erpload/internal/core"
)

// multipartMemory is how much of a multipart form is kept in memory before
// parts spill to temporary files.
const multipartMemory = 8 << 20

// multipartOverhead allows for boundaries and headers around the file part.
const multipartOverhead = 1 << 20

// multipartFile adapts an uploaded form file to core.FileHandle.
type multipartFile struct {
	hdr *multipart.FileHeader
}

func (f multipartFile) Name() string      { return f.hdr.Filename }
func (f multipartFile) MediaType() string { return f.hdr.Header.Get("Content-Type") }

func (f multipartFile) Open() (io.ReadCloser, error) { return f.hdr.Open() }

// chooseFile hands the "file" part of a multipart request to the intake.
// A body over the transport limit is recorded as an oversize rejection.
func (s *Server) chooseFile(w http.ResponseWriter, r *http.Request, sess *core.Session) error {
	ctx := r.Context()
	limit := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return sess.Intake.RejectOversize(ctx, "")
		}
		return &core.ValidationError{Field: "file", Err: core.ErrNoSelection}
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		return &core.ValidationError{Field: "file", Err: core.ErrNoSelection}
	}
	return sess.Intake.ChooseFile(ctx, multipartFile{hdr: files[0]})
}
