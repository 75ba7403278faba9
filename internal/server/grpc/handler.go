package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/dropkeeper/internal/common"
	"github.com/dmitrijs2005/dropkeeper/internal/server/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func field(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func (s *GRPCServer) Login(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {

	username := field(req, "username")

	session, err := s.auth.Login(ctx, username, field(req, "password"), field(req, "code"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	s.logger.Info(ctx, "Logged in", "username", username)

	resp, err := structpb.NewStruct(map[string]interface{}{
		"access_token": session.Token(),
		"expires_at":   session.ExpiresAt().UTC().Format(time.RFC3339),
		"username":     session.Username(),
		"admin":        session.IsAdmin(),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return resp, nil
}

func (s *GRPCServer) FetchSubmission(ctx context.Context, req *structpb.Struct) (*wrapperspb.BytesValue, error) {

	data, err := s.submissions.FetchAndDecrypt(ctx, auth.FromContext(ctx), field(req, "filesystem_id"), field(req, "ref"))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return wrapperspb.Bytes(data), nil
}

// toStatus maps service errors to gRPC codes. Messages stay generic: a
// locked account never learns how many attempts remain.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, "invalid credentials")
	case errors.Is(err, common.ErrLocked):
		return status.Error(codes.PermissionDenied, "account temporarily locked")
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrKeyUnavailable):
		return status.Error(codes.FailedPrecondition, "key unavailable")
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, common.ErrInvalidIdentifier):
		return status.Error(codes.InvalidArgument, "invalid identifier")
	case errors.Is(err, common.ErrStorageUnavailable):
		s.logger.Warn(ctx, "storage unavailable", "error", err.Error())
		return status.Error(codes.Unavailable, "storage unavailable")
	default:
		s.logger.Error(ctx, err.Error())
		return status.Error(codes.Internal, "internal error")
	}
}
