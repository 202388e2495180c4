// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: BUSL-1.1

package dbsession

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/hashicorp/go-dbsession/errors"
	"github.com/hashicorp/go-secure-stdlib/base62"
	"golang.org/x/crypto/blake2b"
)

const (
	// SessionIdPrefix is the prefix of ids assigned to managed sessions.
	SessionIdPrefix = "s"

	// EngineIdPrefix is the prefix of ids assigned to engine handles.
	EngineIdPrefix = "dbe"
)

// NewId creates a new id with the given prefix.  WithPrngValues produces a
// deterministic id from the given values, which is only useful in tests.
func NewId(prefix string, opt ...Option) (string, error) {
	return newId(prefix, opt...)
}

func newId(prefix string, opt ...Option) (string, error) {
	const op = "dbsession.newId"
	if prefix == "" {
		return "", errors.New(errors.InvalidParameter, op, "missing prefix")
	}
	var id string
	var err error
	opts := getOpts(opt...)
	if len(opts.withPrngValues) > 0 {
		sum := blake2b.Sum256([]byte(strings.Join(opts.withPrngValues, "|")))
		reader := bytes.NewReader(sum[0:])
		id, err = base62.RandomWithReader(10, reader)
	} else {
		id, err = base62.Random(10)
	}
	if err != nil {
		return "", errors.Wrap(err, op, errors.WithMsg("unable to generate id"))
	}
	return fmt.Sprintf("%s_%s", prefix, id), nil
}
