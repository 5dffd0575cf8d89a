package compose

var fallbackReplies = map[string][]string{
	"friendly": {
		"Thanks so much for watching and taking the time to comment!",
		"Really appreciate you stopping by, glad you're here!",
		"Thank you for the support, it means a lot!",
	},
	"professional": {
		"Thank you for your comment and for watching.",
		"I appreciate the feedback. Thanks for watching.",
		"Thanks for taking the time to share your thoughts.",
	},
	"casual": {
		"Hey, thanks for watching!",
		"Appreciate it, thanks for dropping a comment!",
		"Thanks for checking this one out!",
	},
	"humorous": {
		"You watched the whole thing? Legend. Thanks!",
		"Comments like this keep the upload button working. Thanks!",
		"Thanks for watching! The algorithm and I both appreciate you.",
	},
}

// fallbackResult picks a canned reply in the user's tone. The pick is
// keyed off the comment so the same comment always gets the same text,
// while different comments spread across the variants.
func fallbackResult(req Request) Result {
	tone := req.Settings.Tone
	replies, ok := fallbackReplies[tone]
	if !ok {
		replies = fallbackReplies["friendly"]
	}
	return Result{
		Text:      replies[len(req.CommentText)%len(replies)],
		Generated: false,
	}
}
