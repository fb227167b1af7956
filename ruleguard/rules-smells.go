package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// 1) Two guards in a row with the same return can be merged with ||
	//      if a { return err }
	//      if b { return err }
	//    => if a || b { return err }
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	// 2) Nested loops: not always wrong, worth a second look
	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

// blocking flags waits that ignore cancellation. Polling and delays must
// select on ctx.Done() so an abandoned request stops promptly.
func blocking(m dsl.Matcher) {
	m.Match(`time.Sleep($d)`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report(`time.Sleep ignores cancellation; wait on a timer inside a select on ctx.Done()`)
}

// outbound flags HTTP calls that cannot be canceled.
func outbound(m dsl.Matcher) {
	m.Match(`http.Get($*_)`, `http.Post($*_)`, `http.PostForm($*_)`, `http.Head($*_)`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report(`request without context; use http.NewRequestWithContext`)

	m.Match(`http.NewRequest($*_)`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report(`request without context; use http.NewRequestWithContext`)
}

// logging keeps every package on the zerolog global logger.
func logging(m dsl.Matcher) {
	m.Import(`log`)
	m.Match(`log.Printf($*_)`, `log.Println($*_)`, `log.Print($*_)`, `log.Fatalf($*_)`, `log.Fatal($*_)`).
		Report(`use github.com/rs/zerolog/log instead of the standard log package`)

	m.Match(`fmt.Printf($*_)`, `fmt.Println($*_)`).
		Where(!m.File().PkgPath.Matches(`/cmd/`)).
		Report(`library code must not print to stdout; log through zerolog`)
}
