package services

import "errors"

// User facing download failures.
var (
	ErrFileNotFound = errors.New("File not found")
	ErrFileDenied   = errors.New("You are not authorized to access this file")
)

var (
	ErrIsFolder     = errors.New("folders cannot be downloaded")
	ErrNoSuchObject = errors.New("no such file or folder")
	ErrNoSuchShare  = errors.New("object has no such share")
)
