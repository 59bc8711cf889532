package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
	"github.com/iliyamo/coffee-backoffice/internal/storage"
)

type UploadStore interface {
	Create(ctx context.Context, f *model.FileUpload) error
	GetByID(ctx context.Context, id uint64) (model.FileUpload, error)
	List(ctx context.Context, page, limit int) (model.Page[model.FileUpload], error)
	SoftDelete(ctx context.Context, id uint64) error
}

// FileStore holds the uploaded bytes.
type FileStore interface {
	Save(r io.Reader, ext string) (string, int64, error)
	Remove(name string) error
}

// ImageUsage reports how many live products display an image.
type ImageUsage interface {
	CountByImage(ctx context.Context, url string) (int, error)
}

// allowedImages maps accepted MIME types to the stored extension.
var allowedImages = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// UploadService stores product and review images.
type UploadService struct {
	uploads UploadStore
	files   FileStore
	usage   ImageUsage
	baseURL string
	log     zerolog.Logger
}

func NewUploadService(uploads UploadStore, files FileStore, usage ImageUsage, baseURL string, log zerolog.Logger) *UploadService {
	return &UploadService{
		uploads: uploads,
		files:   files,
		usage:   usage,
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log.With().Str("component", "uploads").Logger(),
	}
}

// Upload sniffs the content type, writes the file and records it.  Only
// JPEG, PNG, WebP and GIF images are accepted.
func (s *UploadService) Upload(ctx context.Context, originalName string, r io.Reader, uploadedBy *uint64) (model.FileUpload, error) {
	br := bufio.NewReaderSize(r, 3072)
	head, err := br.Peek(3072)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return model.FileUpload{}, err
	}
	if len(head) == 0 {
		return model.FileUpload{}, validation("file is empty")
	}
	mt := mimetype.Detect(head)
	ext := ""
	for m := mt; m != nil; m = m.Parent() {
		if e, ok := allowedImages[m.String()]; ok {
			ext = e
			break
		}
	}
	if ext == "" {
		return model.FileUpload{}, validation("unsupported file type %s", mt.String())
	}

	stored, size, err := s.files.Save(br, ext)
	if errors.Is(err, storage.ErrTooLarge) {
		return model.FileUpload{}, validation("file too large")
	}
	if err != nil {
		return model.FileUpload{}, err
	}
	f := model.FileUpload{
		OriginalName: path.Base(strings.ReplaceAll(originalName, "\\", "/")),
		StoredName:   stored,
		MimeType:     mimeWithoutParams(mt.String()),
		SizeBytes:    size,
		URL:          s.baseURL + "/" + stored,
		UploadedBy:   uploadedBy,
	}
	if err := s.uploads.Create(ctx, &f); err != nil {
		if rerr := s.files.Remove(stored); rerr != nil {
			s.log.Warn().Err(rerr).Str("file", stored).Msg("orphan upload left on disk")
		}
		return model.FileUpload{}, err
	}
	return s.uploads.GetByID(ctx, f.ID)
}

func (s *UploadService) List(ctx context.Context, page, limit int) (model.Page[model.FileUpload], error) {
	return s.uploads.List(ctx, page, limit)
}

func (s *UploadService) Get(ctx context.Context, id uint64) (model.FileUpload, error) {
	f, err := s.uploads.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return f, notFound("file %d not found", id)
	}
	return f, err
}

// Delete soft-deletes the record and removes the file.  Images still shown
// by a live product are kept.
func (s *UploadService) Delete(ctx context.Context, id uint64) error {
	f, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if s.usage != nil {
		n, err := s.usage.CountByImage(ctx, f.URL)
		if err != nil {
			return err
		}
		if n > 0 {
			return conflict("image is used by %d product(s)", n)
		}
	}
	if err := s.uploads.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFound("file %d not found", id)
		}
		return err
	}
	if err := s.files.Remove(f.StoredName); err != nil {
		s.log.Warn().Err(err).Str("file", f.StoredName).Msg("remove uploaded file")
	}
	return nil
}

func mimeWithoutParams(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		return strings.TrimSpace(m[:i])
	}
	return m
}
