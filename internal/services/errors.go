package services

import apierrors "qtodash/internal/errors"

// ErrNoDataset is returned by every read when the session has no dataset
var ErrNoDataset = apierrors.NewAppError(apierrors.ErrTypeNotFound, "no dataset has been uploaded in this session", nil)
