package websearch

import "errors"

var (
	// ErrSearchFailed indicates the search engine could not be reached or
	// returned a malformed response.
	ErrSearchFailed = errors.New("web search failed")

	// ErrExtractFailed indicates a page could not be fetched or its main
	// content could not be isolated.
	ErrExtractFailed = errors.New("page extraction failed")
)
