package report

import (
	"html/template"
	"strings"
)

const (
	starPath     = `M528.1 171.5l-146.4-21.3L316.7 17c-12.6-25.6-54.8-25.6-67.4 0l-65 132.9-146.4 21.3c-26.2 3.8-36.7 36-17.7 54.6l105.9 103-25 145.5c-4.5 26.2 23 46 46.4 33.7L288 439.6l130.6 68.6c23.4 12.3 50.9-7.4 46.4-33.7l-25-145.5 105.9-103c19-18.6 8.5-50.8-17.8-54.6z`
	halfStarPath = `M316.7 17L288 51.9 259.3 17c-12.6-25.6-54.8-25.6-67.4 0l-65 132.9L17 171.5C-9.2 175.3-19.6 207.5-.6 226.1l105.9 103L80.2 474.6c-4.5 26.2 23 46 46.4 33.7L288 439.6V51.9c12.6 0 25.3-12.6 28.7-17z`

	fullStarSVG  = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 576 512" width="30" style="fill:gold;"><path d="` + starPath + `"/></svg>`
	halfStarSVG  = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 576 512" width="30" style="fill:gold;"><path d="` + halfStarPath + `"/></svg>`
	emptyStarSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 576 512" width="30" style="fill:lightgray;"><path d="` + starPath + `"/></svg>`
)

// StarCounts splits a 0-10 rating into five-star display slots: rating/2 whole
// stars, a half star when the remainder is at least .5, and empty stars for the rest.
func StarCounts(rating float64) (full, half, empty int) {
	stars := rating / 2
	if stars < 0 {
		stars = 0
	}
	full = int(stars)
	if stars-float64(full) >= 0.5 {
		half = 1
	}
	if full >= 5 {
		full, half = 5, 0
	}
	return full, half, 5 - full - half
}

// StarsSVG renders a rating as inline SVG stars.
func StarsSVG(rating float64) template.HTML {
	full, half, empty := StarCounts(rating)
	var b strings.Builder
	b.WriteString(strings.Repeat(fullStarSVG, full))
	b.WriteString(strings.Repeat(halfStarSVG, half))
	b.WriteString(strings.Repeat(emptyStarSVG, empty))
	return template.HTML(b.String()) //nolint:gosec // constant markup
}
