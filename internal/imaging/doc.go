// Package imaging prepares images for the vision backend: it finds image
// files, decodes PNG, JPEG, GIF, BMP and WebP, flattens them to opaque RGB and
// re-encodes them as base64 JPEG. It also renders the synthetic colour test
// images used to smoke-test a model.
package imaging
