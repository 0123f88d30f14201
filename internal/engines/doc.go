// Package engines holds the search providers searchq knows about.
//
// A Registry lists providers in host order; Resolve picks the provider that
// produced a hostname using the first word of each provider name; Executor
// replays a stored query against a named provider. The configured engines
// come from the [[engines]] table, and the browser extension may report its
// own provider list, which then takes precedence for ordering. Reported
// engines have no search URL; the executor hands those to the browser.
package engines
