package scraper

// every scraped site in lib/scrapers follows the same three package split:
//
// core/ holds the session: a resty client with a cookie jar, the login
// flow, the authenticated query flow with its single relogin retry, and
// logout. it knows nothing about what the pages mean.
//
// view/ holds the read side. each method is GET page -> goquery document
// -> typed record, and the parse functions are exported separately so
// they also work on saved HTML. view methods are independent of each
// other, the login state held by core is their only shared input.
//
// edit/ holds the mutating operations (the canteen's ordering). these
// are inherently stateful, the server issues an anti-replay token with
// every confirmation and the next mutation must carry it.
//
// a scraping method generally has this structure:
// 1. turn the typed input into a request (path + query parameters).
// 2. issue it through core, which transparently re-authenticates once.
// 3. assert the response shape (expected elements present).
// 4. select the interesting elements into a record.
//
// selectors live next to the record types they populate. when the
// portal's markup changes, the failure surfaces as an
// htmlutil.ElementNotFoundError naming what was being looked for,
// never as a nil dereference three layers up.
