package minio

import (
	"fmt"
	"testing"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"github.com/flatfs/flatfs/pkg/errors"
)

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(miniogo.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(miniogo.ErrorResponse{StatusCode: 404}))
	assert.False(t, isNotFound(miniogo.ErrorResponse{Code: "AccessDenied", StatusCode: 403}))
	assert.False(t, isNotFound(fmt.Errorf("connection reset")))
}

func TestTranslate(t *testing.T) {
	err := translate("copy", "a/b", fmt.Errorf("boom"))
	assert.True(t, errors.IsKind(err, errors.KindStorageFailure))
	assert.Contains(t, err.Error(), "copy")
}
