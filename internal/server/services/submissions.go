package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/cryptox"
	"github.com/dmitrijs2005/dropkeeper/internal/logging"
	"github.com/dmitrijs2005/dropkeeper/internal/server/auth"
	"github.com/dmitrijs2005/dropkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/dropkeeper/internal/server/storage"
)

// SubmissionKind distinguishes text messages from uploaded documents.
type SubmissionKind string

const (
	KindMessage  SubmissionKind = "msg"
	KindDocument SubmissionKind = "doc"
)

// SubmissionRef builds the stored name of the n-th interaction of a source.
// Documents are gzip-compressed before encryption and carry ".gz.gpg".
func SubmissionRef(n int, name string, kind SubmissionKind) string {
	if kind == KindDocument {
		return fmt.Sprintf("%d-%s-doc.gz.gpg", n, name)
	}
	return fmt.Sprintf("%d-%s-msg.gpg", n, name)
}

type SubmissionService struct {
	vault   *KeyVault
	store   storage.Store
	metrics *metrics.Metrics
	logger  logging.Logger
	now     func() time.Time
}

func NewSubmissionService(vault *KeyVault, store storage.Store, logger logging.Logger, mx *metrics.Metrics) *SubmissionService {
	return &SubmissionService{
		vault:   vault,
		store:   store,
		metrics: mx,
		logger:  logger.With("module", "submission_service"),
		now:     time.Now,
	}
}

// Store encrypts data to the source's public key and writes it under the
// returned ref.
func (s *SubmissionService) Store(ctx context.Context, filesystemID string, n int, name string, data []byte, kind SubmissionKind) (string, error) {
	if kind != KindMessage && kind != KindDocument {
		return "", fmt.Errorf("unknown submission kind %q", kind)
	}
	ref := SubmissionRef(n, name, kind)
	if err := common.ValidateSubmissionRef(ref); err != nil {
		return "", err
	}

	pub, err := s.vault.GetPublicKey(ctx, filesystemID)
	if err != nil {
		return "", err
	}

	payload := data
	if kind == KindDocument {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		zw.Name = name
		if _, err := zw.Write(data); err != nil {
			return "", err
		}
		if err := zw.Close(); err != nil {
			return "", err
		}
		payload = buf.Bytes()
	}

	ciphertext, err := cryptox.Encrypt(pub, payload)
	if err != nil {
		return "", fmt.Errorf("error encrypting submission: %w", err)
	}
	if err := s.store.Put(ctx, filesystemID, ref, ciphertext); err != nil {
		return "", err
	}

	return ref, nil
}

// FetchAndDecrypt returns the plaintext of a stored submission. The
// session must be valid; a source whose keypair was deleted yields
// common.ErrKeyUnavailable before any ciphertext is read. Documents come
// back still gzip-compressed.
func (s *SubmissionService) FetchAndDecrypt(ctx context.Context, session *auth.Session, filesystemID, ref string) ([]byte, error) {
	if !session.Valid(s.now()) {
		return nil, common.ErrorUnauthorized
	}
	if err := common.ValidateFilesystemID(filesystemID); err != nil {
		return nil, err
	}
	if err := common.ValidateSubmissionRef(ref); err != nil {
		return nil, err
	}

	keys, err := s.vault.GetPrivateKey(ctx, filesystemID)
	if err != nil {
		if errors.Is(err, common.ErrKeyUnavailable) {
			s.metrics.Decryption(metrics.DecryptKeyUnavailable)
		} else {
			s.metrics.Decryption(metrics.DecryptError)
		}
		return nil, err
	}

	ciphertext, err := s.store.Get(ctx, filesystemID, ref)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.metrics.Decryption(metrics.DecryptNotFound)
		} else {
			s.metrics.Decryption(metrics.DecryptError)
		}
		return nil, err
	}

	plaintext, err := cryptox.Decrypt(keys, ciphertext)
	if err != nil {
		s.metrics.Decryption(metrics.DecryptError)
		return nil, fmt.Errorf("error decrypting submission: %w", err)
	}

	s.metrics.Decryption(metrics.DecryptOK)
	s.logger.Info(ctx, "submission decrypted", "journalist", session.Username(), "ref", ref)
	return plaintext, nil
}

// Delete removes a stored submission. Deleting a missing one succeeds.
func (s *SubmissionService) Delete(ctx context.Context, session *auth.Session, filesystemID, ref string) error {
	if !session.Valid(s.now()) {
		return common.ErrorUnauthorized
	}
	if err := s.store.Delete(ctx, filesystemID, ref); err != nil {
		return err
	}
	s.logger.Info(ctx, "submission deleted", "journalist", session.Username(), "ref", ref)
	return nil
}
