package email

const (
	subjectAmendmentFmt      = "Request %s amended"
	subjectCreatedFmt        = "New servicing request %s"
	subjectCancelledFmt      = "Request %s cancelled"
	subjectStatusChangedFmt  = "Request %s is now %s"
	subjectReconfirmationFmt = "Re-confirmation required: %s"
)
