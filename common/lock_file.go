// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"fmt"
	"syscall"
)

// LockFile marks the exclusive ownership of a resource across processes by
// the existence of a file. Locks not released by a process outlive it.
type LockFile interface {
	// Release deletes the lock file. Each lock may only be released once.
	Release() error
	Valid() bool
}

type lockFile struct {
	path           string
	fileDescriptor int
}

// CreateLockFile atomically creates the file at the given path. It fails if
// the file already exists.
func CreateLockFile(path string) (LockFile, error) {
	fd, err := syscall.Open(path, syscall.O_CREAT|syscall.O_EXCL|syscall.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire file lock %s; %w", path, err)
	}
	return &lockFile{path: path, fileDescriptor: fd}, nil
}

func (f *lockFile) Valid() bool {
	return f.fileDescriptor != 0
}

func (f *lockFile) Release() error {
	if f.fileDescriptor == 0 {
		return fmt.Errorf("unable to release invalid lock")
	}
	if err := syscall.Close(f.fileDescriptor); err != nil {
		return fmt.Errorf("failed to release file lock; %w", err)
	}
	if err := syscall.Unlink(f.path); err != nil {
		return fmt.Errorf("failed to release file lock; %w", err)
	}
	f.fileDescriptor = 0
	return nil
}
