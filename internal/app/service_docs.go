package app

import (
	"context"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"omnihub/api/internal/realtime"
	"omnihub/api/internal/search"
	"omnihub/api/internal/store"
	"omnihub/api/internal/util"
)

const (
	maxDocumentSize  = 64 << 20
	downloadURLValid = 15 * time.Minute
)

type DocumentView struct {
	ID          string `json:"id"`
	ProjectID   string `json:"projectId"`
	OwnerID     string `json:"ownerId"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	CreatedAt   string `json:"createdAt"`
}

func documentView(d store.Document) DocumentView {
	return DocumentView{
		ID:          d.ID,
		ProjectID:   d.ProjectID,
		OwnerID:     d.OwnerID,
		Name:        d.Name,
		ContentType: d.ContentType,
		Size:        d.Size,
		CreatedAt:   d.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Service) requireDocs() error {
	if s.docs == nil {
		return domainError(http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE", "document storage is not configured", nil)
	}
	return nil
}

// UploadDocument streams the body into object storage and records the
// document row. The object key is derived from the document id so deletes
// can find the blob without a lookup.
func (s *Service) UploadDocument(ctx context.Context, projectID, userID, name, contentType string, size int64, body io.Reader) (DocumentView, error) {
	if err := s.requireDocs(); err != nil {
		return DocumentView{}, err
	}
	if _, err := s.checker.RequireMember(ctx, projectID, userID); err != nil {
		return DocumentView{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return DocumentView{}, validationError("document name is required", nil)
	}
	if size <= 0 || size > maxDocumentSize {
		return DocumentView{}, validationError("document size out of range", nil)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := store.Document{
		ID:          util.NewID("doc"),
		ProjectID:   projectID,
		OwnerID:     userID,
		Name:        name,
		ContentType: contentType,
		Size:        size,
	}
	doc.ObjectKey = projectID + "/" + doc.ID

	if err := s.docs.Upload(ctx, doc.ObjectKey, contentType, size, body); err != nil {
		return DocumentView{}, err
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		// Row insert failed after the blob landed; clean the blob up.
		if derr := s.docs.Delete(ctx, doc.ObjectKey); derr != nil {
			log.Printf(`{"level":"warn","msg":"orphaned document object","key":%q,"error":%q}`, doc.ObjectKey, derr.Error())
		}
		return DocumentView{}, err
	}

	if s.search != nil {
		s.search.IndexDocument(search.DocumentRecord{ID: doc.ID, Name: doc.Name, ProjectID: doc.ProjectID})
	}
	created, err := s.store.GetDocument(ctx, doc.ID)
	if err != nil {
		return DocumentView{}, err
	}
	s.emit(realtime.ProjectRoom(projectID), "document_uploaded", documentView(created))
	return documentView(created), nil
}

func (s *Service) ListDocuments(ctx context.Context, projectID, userID string) ([]DocumentView, error) {
	if _, err := s.checker.RequireMember(ctx, projectID, userID); err != nil {
		return nil, err
	}
	docs, err := s.store.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, err
	}
	views := make([]DocumentView, 0, len(docs))
	for _, doc := range docs {
		views = append(views, documentView(doc))
	}
	return views, nil
}

// DocumentDownloadURL returns a short-lived presigned URL for the blob.
func (s *Service) DocumentDownloadURL(ctx context.Context, docID, userID string) (string, error) {
	if err := s.requireDocs(); err != nil {
		return "", err
	}
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return "", err
	}
	if _, err := s.checker.RequireMember(ctx, doc.ProjectID, userID); err != nil {
		return "", err
	}
	return s.docs.PresignGet(ctx, doc.ObjectKey, doc.Name, downloadURLValid)
}

func (s *Service) DeleteDocument(ctx context.Context, docID, userID string) error {
	doc, err := s.store.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	if _, err := s.checker.RequireMember(ctx, doc.ProjectID, userID); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, docID); err != nil {
		return err
	}

	if s.docs != nil {
		if err := s.docs.Delete(ctx, doc.ObjectKey); err != nil {
			log.Printf(`{"level":"warn","msg":"delete document object","key":%q,"error":%q}`, doc.ObjectKey, err.Error())
		}
	}
	if s.search != nil {
		s.search.DeleteDocument(docID)
	}
	s.emit(realtime.ProjectRoom(doc.ProjectID), "document_deleted", map[string]any{
		"documentId": docID,
		"projectId":  doc.ProjectID,
	})
	return nil
}
