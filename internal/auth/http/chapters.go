package http

import (
	"net/http"

	"github.com/memberhub/memberhub/internal/auth/domain"
	"github.com/memberhub/memberhub/internal/auth/guard"
)

// RosterAccess lets the president, the chapter's lead and its active members
// in. The membership check goes to storage, so it runs last.
func RosterAccess(members guard.ChapterMembershipChecker, chapterID string) guard.Guard {
	return guard.AnyOf(
		guard.President,
		guard.ChapterLead(chapterID),
		guard.AllOf(
			guard.HasProfile(domain.ProfileMember),
			guard.InChapter(members, chapterID),
		),
	)
}

// HandleRosterAccess answers 204 once the route's guard has admitted the
// request.
//
//	@Summary		Check chapter roster access
//	@Description	Admits the president, the chapter lead, and active members of the chapter.
//	@Tags			Chapters
//	@Param			id	path	string	true	"Chapter ID"
//	@Success		204	"Access granted"
//	@Failure		403	{object}	authsdk.ErrorResponse	"Not permitted"
//	@Router			/v1/chapters/{id}/roster-access [get].
func HandleRosterAccess(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
