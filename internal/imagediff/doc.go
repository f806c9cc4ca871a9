// Package imagediff compares two raster captures pixel by pixel.
//
// A pixel counts as an error when any of its RGBA channels differs between
// the two images. The share of erroneous pixels is the difference
// percentage reported by sitediff. The package also renders the
// difference image written next to the captures and fingerprints PNG
// bytes so identical captures skip decoding altogether.
package imagediff
