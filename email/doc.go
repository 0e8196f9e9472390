package email

// email is responsible for sending a single message through an SMTP session
// that the caller has already opened, including reading attachments from
// disk, building a MIME-formatted message, and recording the outcome in a
// plaintext log. It also checks whether strings look like email addresses.
// Opening and authenticating the session lives here too (see Dial), but the
// send path never dials, closes, or retries anything itself.
