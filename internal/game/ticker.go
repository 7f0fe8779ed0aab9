package game

// Registry is the in-memory bidirectional ticker <-> source-name map. It is
// derived state: every startup replays Allocate over the community's channel
// list (platform order) and emoji list (sorted by token), and because
// allocation is deterministic given the running set of taken tickers, the
// same names resolve to the same tickers across restarts. That replay order
// is a contract, not a convenience; callers must not reorder it.
type Registry struct {
	tickerToName map[string]string
	nameToTicker map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		tickerToName: make(map[string]string),
		nameToTicker: make(map[string]string),
	}
}

// Allocate assigns a stable ticker for name under the given category prefix
// and records it. The symbol is derived from source, which is the name itself
// for channels and the name part of the token for emoji; the registry stays
// keyed by name. A name that is already registered keeps its ticker.
//
// The search walks every strictly increasing 5-index subsequence of the
// cleaned source in lexicographic index order and takes the first candidate
// not yet allocated. If the source is too short, or every subsequence is
// taken, the cleaned source is extended with each 5-letter suffix
// AAAAA..ZZZZZ in order and the subsequence walk retried against each
// extension.
func (r *Registry) Allocate(prefix byte, name, source string) (string, error) {
	if t, ok := r.nameToTicker[name]; ok {
		return t, nil
	}

	s := CleanName(source)
	ticker := ""
	if len(s) >= 5 {
		ticker = r.firstFree(prefix, s)
	}
	if ticker == "" {
		suffix := make([]byte, 5)
		for i := 0; i < 26 && ticker == ""; i++ {
			suffix[0] = byte('A' + i)
			for j := 0; j < 26 && ticker == ""; j++ {
				suffix[1] = byte('A' + j)
				for k := 0; k < 26 && ticker == ""; k++ {
					suffix[2] = byte('A' + k)
					for l := 0; l < 26 && ticker == ""; l++ {
						suffix[3] = byte('A' + l)
						for m := 0; m < 26 && ticker == ""; m++ {
							suffix[4] = byte('A' + m)
							ticker = r.firstFree(prefix, s+string(suffix))
						}
					}
				}
			}
		}
	}
	if ticker == "" {
		return "", ErrTickerExhausted
	}

	r.tickerToName[ticker] = name
	r.nameToTicker[name] = ticker
	return ticker, nil
}

// firstFree returns the first unallocated prefix+5-subsequence of s, or "".
func (r *Registry) firstFree(prefix byte, s string) string {
	n := len(s)
	buf := make([]byte, 6)
	buf[0] = prefix
	for i := 0; i < n; i++ {
		buf[1] = s[i]
		for j := i + 1; j < n; j++ {
			buf[2] = s[j]
			for k := j + 1; k < n; k++ {
				buf[3] = s[k]
				for l := k + 1; l < n; l++ {
					buf[4] = s[l]
					for m := l + 1; m < n; m++ {
						buf[5] = s[m]
						candidate := string(buf)
						if _, taken := r.tickerToName[candidate]; !taken {
							return candidate
						}
					}
				}
			}
		}
	}
	return ""
}

// NameFor resolves a ticker back to its channel name or emoji token.
func (r *Registry) NameFor(ticker string) (string, bool) {
	name, ok := r.tickerToName[ticker]
	return name, ok
}

// TickerFor resolves a channel name or emoji token to its ticker.
func (r *Registry) TickerFor(name string) (string, bool) {
	t, ok := r.nameToTicker[name]
	return t, ok
}

func (r *Registry) Len() int {
	return len(r.tickerToName)
}
