// Package config provides the configuration of a sitediff run: the site to
// crawl, the rendering profile, crawl limits, comparison settings and the
// on-disk layout of captures and reports.
package config
