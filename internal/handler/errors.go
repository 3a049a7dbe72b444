package handler

import (
	"errors"
	"log"

	"nftmarket-api/internal/repository"
	"nftmarket-api/internal/service"
	"nftmarket-api/pkg/apierror"
	"nftmarket-api/pkg/derive"
	"nftmarket-api/pkg/feesplit"
)

// mapError converts a domain error into the structured API error reported to
// clients. Every enumerable failure keeps its own code; anything unknown is
// logged and reported as a 500.
func mapError(err error) *apierror.Error {
	switch {
	// Validation: rejected before any state change.
	case errors.Is(err, service.ErrUndefinedName):
		return apierror.ValidationError(err.Error()).WithCode("UNDEFINED_NAME")
	case errors.Is(err, service.ErrNameTooLong):
		return apierror.ValidationError(err.Error()).WithCode("NAME_TOO_LONG")
	case errors.Is(err, service.ErrInvalidFeeBps):
		return apierror.ValidationError(err.Error()).WithCode("INVALID_FEE_BPS")
	case errors.Is(err, derive.ErrInvalidAddress):
		return apierror.BadRequest(err.Error()).WithCode("INVALID_ADDRESS")

	// Authorization: rejected before custody or payment changes.
	case errors.Is(err, service.ErrNotAssetOwner):
		return apierror.Forbidden(err.Error()).WithCode("NOT_ASSET_OWNER")
	case errors.Is(err, service.ErrNotUpdateAuthority):
		return apierror.Forbidden(err.Error()).WithCode("NOT_UPDATE_AUTHORITY")
	case errors.Is(err, service.ErrCollectionMismatch):
		return apierror.Forbidden(err.Error()).WithCode("COLLECTION_MISMATCH")
	case errors.Is(err, service.ErrSellerMismatch):
		return apierror.Forbidden(err.Error()).WithCode("SELLER_MISMATCH")
	case errors.Is(err, service.ErrUnauthorizedLister):
		return apierror.Forbidden(err.Error()).WithCode("UNAUTHORIZED_LISTER")
	case errors.Is(err, service.ErrNotItemAuthority):
		return apierror.Forbidden(err.Error()).WithCode("NOT_ITEM_AUTHORITY")

	// State: rejected at the start of purchase/redeem.
	case errors.Is(err, service.ErrAssetMismatch):
		return apierror.Conflict(err.Error()).WithCode("ASSET_MISMATCH")
	case errors.Is(err, service.ErrAssetNotInEscrow):
		return apierror.UnprocessableEntity(err.Error()).WithCode("ASSET_NOT_IN_ESCROW")
	case errors.Is(err, service.ErrListingNotActive):
		return apierror.UnprocessableEntity(err.Error()).WithCode("LISTING_NOT_ACTIVE")
	case errors.Is(err, service.ErrItemFrozen):
		return apierror.UnprocessableEntity(err.Error()).WithCode("ITEM_FROZEN")
	case errors.Is(err, service.ErrListingExists):
		return apierror.Conflict(err.Error()).WithCode("LISTING_EXISTS")
	case errors.Is(err, service.ErrMarketplaceExists):
		return apierror.Conflict(err.Error()).WithCode("MARKETPLACE_EXISTS")
	case errors.Is(err, service.ErrMarketplaceNotFound):
		return apierror.NotFound(err.Error()).WithCode("MARKETPLACE_NOT_FOUND")
	case errors.Is(err, service.ErrListingNotFound):
		return apierror.NotFound(err.Error()).WithCode("LISTING_NOT_FOUND")
	case errors.Is(err, service.ErrItemNotFound):
		return apierror.NotFound(err.Error()).WithCode("ITEM_NOT_FOUND")

	// Arithmetic and settlement.
	case errors.Is(err, feesplit.ErrMathOverflow):
		return apierror.UnprocessableEntity(err.Error()).WithCode("MATH_OVERFLOW")
	case errors.Is(err, repository.ErrInsufficientFunds):
		return apierror.PaymentRequired(err.Error())

	default:
		log.Printf("[handler] unexpected error: %v", err)
		return apierror.InternalError("")
	}
}

// badJSON reports an unreadable request body.
func badJSON(err error) *apierror.Error {
	return apierror.BadRequest("invalid JSON body: " + err.Error()).WithCode("INVALID_JSON")
}

// parseAddressParam decodes a hex address from a request value.
func parseAddressParam(value string) (derive.Address, *apierror.Error) {
	addr, err := derive.Parse(value)
	if err != nil {
		return derive.Address{}, apierror.BadRequest(err.Error()).WithCode("INVALID_ADDRESS")
	}
	return addr, nil
}
