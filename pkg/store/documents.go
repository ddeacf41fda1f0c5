package store

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"marketbot/pkg/domain"
)

// CreateDocumentWithPages inserts the document row and its content rows in
// one transaction, so neither can exist without the other.
func (s *GormStore) CreateDocumentWithPages(doc domain.Document, pages []domain.Page) (int64, error) {
	if doc.UploadDate.IsZero() {
		doc.UploadDate = time.Now().UTC()
	}
	model := DocumentModel{
		Filename:   doc.Filename,
		Title:      doc.Title,
		UploadDate: doc.UploadDate,
		FilePath:   doc.FilePath,
		NumPages:   doc.NumPages,
		AdminID:    doc.AdminID,
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		if len(pages) == 0 {
			return nil
		}
		rows := make([]PageModel, 0, len(pages))
		for _, page := range pages {
			rows = append(rows, PageModel{
				DocID:   model.DocID,
				PageNum: page.PageNum,
				Content: page.Content,
			})
		}
		return tx.CreateInBatches(&rows, 200).Error
	})
	if err != nil {
		return 0, err
	}
	return model.DocID, nil
}

// GetDocument retrieves a document by id.
func (s *GormStore) GetDocument(docID int64) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "doc_id = ?", docID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// GetDocumentByFilename retrieves a document by its unique filename.
func (s *GormStore) GetDocumentByFilename(filename string) (domain.Document, bool, error) {
	var model DocumentModel
	if err := s.db.First(&model, "filename = ?", filename).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Document{}, false, nil
		}
		return domain.Document{}, false, err
	}
	return documentFromModel(model), true, nil
}

// ListDocuments returns all documents ordered by upload date.
func (s *GormStore) ListDocuments() ([]domain.Document, error) {
	var models []DocumentModel
	if err := s.db.Order("upload_date ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	docs := make([]domain.Document, 0, len(models))
	for _, m := range models {
		docs = append(docs, documentFromModel(m))
	}
	return docs, nil
}

// DeleteDocument removes content rows before the document row. The stored
// file is never deleted. Missing ids return ErrDocumentNotFound.
func (s *GormStore) DeleteDocument(docID int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var model DocumentModel
		if err := tx.First(&model, "doc_id = ?", docID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrDocumentNotFound
			}
			return err
		}
		if err := tx.Delete(&PageModel{}, "doc_id = ?", docID).Error; err != nil {
			return err
		}
		return tx.Delete(&DocumentModel{}, "doc_id = ?", docID).Error
	})
}

// GetPageContent returns the full content of one page.
func (s *GormStore) GetPageContent(docID int64, pageNum int) (string, bool, error) {
	var model PageModel
	if err := s.db.First(&model, "doc_id = ? AND page_num = ?", docID, pageNum).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", false, nil
		}
		return "", false, err
	}
	return model.Content, true, nil
}

// ListPages returns a document's content rows in page order.
func (s *GormStore) ListPages(docID int64) ([]domain.Page, error) {
	var models []PageModel
	if err := s.db.Where("doc_id = ?", docID).Order("page_num ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	pages := make([]domain.Page, 0, len(models))
	for _, m := range models {
		pages = append(pages, domain.Page{DocID: m.DocID, PageNum: m.PageNum, Content: m.Content})
	}
	return pages, nil
}

// SearchPages finds content rows containing every term as a case-insensitive
// substring. Ranking is SQL row order, truncated to limit.
func (s *GormStore) SearchPages(terms []string, limit int) ([]PageHit, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	conditions := make([]string, 0, len(terms))
	args := make([]any, 0, len(terms)+1)
	for _, term := range terms {
		conditions = append(conditions, "LOWER(c.content) LIKE ?")
		args = append(args, "%"+strings.ToLower(term)+"%")
	}
	args = append(args, limit)
	query := fmt.Sprintf(`
		SELECT d.doc_id AS doc_id, d.title AS title, c.page_num AS page_num, c.content AS content
		FROM knowledge_base_content c
		JOIN knowledge_base_docs d ON c.doc_id = d.doc_id
		WHERE %s
		LIMIT ?`, strings.Join(conditions, " AND "))
	var hits []PageHit
	if err := s.db.Raw(query, args...).Scan(&hits).Error; err != nil {
		return nil, err
	}
	return hits, nil
}

func documentFromModel(m DocumentModel) domain.Document {
	return domain.Document{
		ID:         m.DocID,
		Filename:   m.Filename,
		Title:      m.Title,
		UploadDate: m.UploadDate,
		FilePath:   m.FilePath,
		NumPages:   m.NumPages,
		AdminID:    m.AdminID,
	}
}
