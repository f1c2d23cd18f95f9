// Package gmail is the thread triage core over the Gmail API.
//
// A Mailbox bundles the pieces of one session:
//   - LabelDirectory resolves label names, listing labels once per session
//   - Enumerator pages through the threads carrying a label
//   - Hydrator turns thread stubs into Threads through a durable cache
//   - Thread exposes subject, messages and labels, and moves labels with a
//     single Modify call
//
// Remote access goes through the narrow Service interface; Client implements
// it over google.golang.org/api/gmail/v1 with rate limiting, tracing and
// metrics.
//
// Example usage:
//
//	mb := gmail.NewMailbox(client, store, gmail.MailboxOptions{})
//	src, err := mb.Label(ctx, "IOB/libcamera")
//	if err != nil {
//	    return err
//	}
//	for t, err := range mb.Threads(ctx, src) {
//	    if err != nil {
//	        log.Printf("skipping: %v", err)
//	        continue
//	    }
//	    fmt.Println(t.Subject())
//	}
package gmail
