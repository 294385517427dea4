// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package apierror_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Cobra9786/power/apierror"
	"github.com/Cobra9786/power/bitcoin/pooltx"
	"github.com/Cobra9786/power/bitcoin/runes"
	"github.com/Cobra9786/power/store"
)

func TestFromNotFound(t *testing.T) {
	err := fmt.Errorf("lookup rune: %w", store.ErrNotFound)
	apiErr := apierror.From(err)

	require.Equal(t, apierror.CodeNotFound, apiErr.Code)
	require.Equal(t, 404, apiErr.HTTPStatus())
}

func TestFromCenotaph(t *testing.T) {
	err := fmt.Errorf("verify runestone: %w", runes.NewCenotaphError(runes.EdictsCenotaphErrorType, "edict overspend"))
	apiErr := apierror.From(err)

	require.Equal(t, apierror.CodeUnprocessableEntity, apiErr.Code)
	require.Equal(t, "edict overspend", apiErr.Reason)
}

func TestFromInsufficientFunds(t *testing.T) {
	err := fmt.Errorf("fund swap: %w", pooltx.ErrInsufficientFunds)
	apiErr := apierror.From(err)

	require.Equal(t, apierror.CodeUnprocessableEntity, apiErr.Code)
	require.Equal(t, 422, apiErr.HTTPStatus())
}

func TestFromUnknown(t *testing.T) {
	apiErr := apierror.From(fmt.Errorf("boom"))
	require.Equal(t, apierror.CodeServerError, apiErr.Code)
	require.Equal(t, 500, apiErr.HTTPStatus())
}

func TestFromNil(t *testing.T) {
	require.Nil(t, apierror.From(nil))
}
