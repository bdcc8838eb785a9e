package core

// -----------------------------------------------------------------------------
// Watch Lists
// -----------------------------------------------------------------------------

// WatchList is one of the title lists a job scrapes or pushes. The titles
// dropdown of each job offers one sub-tab per list.
type WatchList string

const (
	ListWatch     WatchList = "watch"
	ListDesired   WatchList = "desired"
	ListViewed    WatchList = "viewed"
	ListAbandoned WatchList = "abandone"
	ListFavorites WatchList = "favorites"
	ListDelayed   WatchList = "delayed"
	ListReviewed  WatchList = "reviewed"
	ListErrors    WatchList = "errors"
)

func WatchLists() []WatchList {
	return []WatchList{
		ListWatch,
		ListDesired,
		ListViewed,
		ListAbandoned,
		ListFavorites,
		ListDelayed,
		ListReviewed,
		ListErrors,
	}
}

func IsWatchList(s string) bool {
	for _, l := range WatchLists() {
		if string(l) == s {
			return true
		}
	}
	return false
}
