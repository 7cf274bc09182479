// internal/app/features/records/upload.go
package records

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	uierrors "github.com/dalemusser/classhub/internal/app/features/errors"
	"github.com/dalemusser/classhub/internal/app/review"
	"github.com/dalemusser/classhub/internal/app/system/authz"
	"github.com/dalemusser/classhub/internal/app/system/httpjson"
	"github.com/dalemusser/classhub/internal/app/system/timeouts"
)

// multipartMemory is how much of a multipart body is held in memory before
// spilling to temp files.
const multipartMemory = 8 << 20

// detailsBody is the JSON and form shape of record descriptors.
type detailsBody struct {
	Title       string `json:"title"`
	ClassName   string `json:"class_name"`
	Subject     string `json:"subject"`
	GroupName   string `json:"group_name"`
	MeetingDate string `json:"meeting_date"`
	Folder      string `json:"folder"`
}

var errBadMeetingDate = errors.New("meeting_date must be YYYY-MM-DD or RFC 3339")

func (b detailsBody) details() (review.Details, error) {
	d := review.Details{
		Title:     b.Title,
		ClassName: b.ClassName,
		Subject:   b.Subject,
		GroupName: b.GroupName,
		Folder:    b.Folder,
	}
	if s := strings.TrimSpace(b.MeetingDate); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return review.Details{}, err
		}
		d.MeetingDate = &t
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, errBadMeetingDate
}

// Upload handles POST /records/{kind} as multipart/form-data. The "file"
// part is optional; the remaining fields follow detailsBody.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	actor, ok := authz.Actor(r)
	if !ok {
		uierrors.Unauthorized(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, review.MaxUploadSize+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			httpjson.Error(w, http.StatusRequestEntityTooLarge, "upload is too large")
			return
		}
		uierrors.BadRequest(w, "expected a multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	d, err := detailsBody{
		Title:       r.FormValue("title"),
		ClassName:   r.FormValue("class_name"),
		Subject:     r.FormValue("subject"),
		GroupName:   r.FormValue("group_name"),
		MeetingDate: r.FormValue("meeting_date"),
		Folder:      r.FormValue("folder"),
	}.details()
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	var file *review.File
	part, hdr, err := r.FormFile("file")
	switch {
	case err == nil:
		defer part.Close()
		ct := hdr.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		file = &review.File{Name: hdr.Filename, Size: hdr.Size, ContentType: ct, Body: part}
	case errors.Is(err, http.ErrMissingFile):
	default:
		uierrors.BadRequest(w, "unreadable file part")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	rec, err := h.Svc.Upload(ctx, kind, actor, d, file)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, rec)
}

// patchBody is the JSON shape of PATCH /records/{kind}/{id}. Absent fields
// are left unchanged.
type patchBody struct {
	Title       *string `json:"title"`
	ClassName   *string `json:"class_name"`
	Subject     *string `json:"subject"`
	GroupName   *string `json:"group_name"`
	MeetingDate *string `json:"meeting_date"`
	Folder      *string `json:"folder"`
}

func (b patchBody) patch() (review.Patch, error) {
	p := review.Patch{
		Title:     b.Title,
		ClassName: b.ClassName,
		Subject:   b.Subject,
		GroupName: b.GroupName,
		Folder:    b.Folder,
	}
	if b.MeetingDate != nil {
		if s := strings.TrimSpace(*b.MeetingDate); s != "" {
			t, err := parseDate(s)
			if err != nil {
				return review.Patch{}, err
			}
			p.MeetingDate = &t
		}
	}
	return p, nil
}

// Edit handles PATCH /records/{kind}/{id} with a JSON patchBody.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	kind, id, actor, ok := h.target(w, r)
	if !ok {
		return
	}
	var body patchBody
	if err := httpjson.Decode(r, &body); err != nil {
		uierrors.BadRequest(w, "invalid JSON body")
		return
	}
	p, err := body.patch()
	if err != nil {
		uierrors.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	rec, err := h.Svc.Edit(ctx, kind, id, actor, p)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, rec)
}
