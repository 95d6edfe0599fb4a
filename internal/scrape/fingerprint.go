package scrape

import "strconv"

// Identity is the browser identity presented for one page load.
type Identity struct {
	UserAgent string
	Width     int
	Height    int
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14.6; rv:133.0) Gecko/20100101 Firefox/133.0",
}

var viewports = [][2]int{
	{1920, 1080},
	{1680, 1050},
	{1536, 864},
	{1440, 900},
	{1366, 768},
}

// pickIdentity maps two uniform draws in [0,1) onto the candidate pools.
func pickIdentity(uaDraw, viewportDraw float64) Identity {
	ua := userAgents[index(uaDraw, len(userAgents))]
	vp := viewports[index(viewportDraw, len(viewports))]
	return Identity{UserAgent: ua, Width: vp[0], Height: vp[1]}
}

func index(draw float64, n int) int {
	i := int(draw * float64(n))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func (id Identity) viewportWidth() string {
	return strconv.Itoa(id.Width)
}
