// Command wdtag tags folders of images with a WD tagger model, writing the
// selected tags to sidecar caption files, embedded IPTC/XMP metadata, or both.
//
// Subcommands:
//
//	wdtag tag DIR        run the tagger over DIR
//	wdtag fetch          download the model and label table into the cache
//	wdtag history [ID]   list past runs, or the outcomes of one run
//	wdtag config init    write a sample configuration file
package main
