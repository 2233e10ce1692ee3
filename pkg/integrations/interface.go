package integrations

// PageProcessor rewrites a downloaded page before it is packaged.
type PageProcessor interface {
	Process(page ImageData) (ImageData, error)
}

// ImageData is one page image in reading order.
type ImageData struct {
	Content     []byte
	ContentType string
	Index       int
}

type CoverData struct {
	Content     []byte
	ContentType string
}
