package remote

import (
	"encoding/xml"
	"strings"
)

// propfindBody is the PROPFIND request body, requesting exactly the
// properties discovery needs (spec §6 "Wire details").
const propfindBody = `<?xml version="1.0"?>
<d:propfind xmlns:d="DAV:" xmlns:oc="http://owncloud.org/ns">
  <d:prop>
    <d:resourcetype/>
    <d:getcontentlength/>
    <d:getlastmodified/>
    <d:getetag/>
    <oc:id/>
    <oc:permissions/>
    <oc:checksums/>
    <oc:size/>
  </d:prop>
</d:propfind>`

// multiStatus is the top-level 207 Multi-Status response envelope.
type multiStatus struct {
	XMLName   xml.Name   `xml:"multistatus"`
	Responses []davEntry `xml:"response"`
}

type davEntry struct {
	Href     string      `xml:"href"`
	PropStat []propStat  `xml:"propstat"`
}

type propStat struct {
	Status string   `xml:"status"`
	Prop   davProps `xml:"prop"`
}

type davProps struct {
	ResourceType    *davResourceType `xml:"resourcetype"`
	ContentLength   string           `xml:"getcontentlength"`
	LastModified    string           `xml:"getlastmodified"`
	ETag            string           `xml:"getetag"`
	FileID          string           `xml:"id"`
	Permissions     string           `xml:"permissions"`
	Checksums       davChecksums     `xml:"checksums"`
	Size            string           `xml:"size"`
}

type davResourceType struct {
	Collection *struct{} `xml:"collection"`
}

type davChecksums struct {
	Checksum []string `xml:"checksum"`
}

// IsCollection reports whether the response entry describes a directory.
func (e *davEntry) IsCollection() bool {
	for _, ps := range e.PropStat {
		if ps.Prop.ResourceType != nil && ps.Prop.ResourceType.Collection != nil {
			return true
		}
	}
	return false
}

// props returns the 2xx propstat block's properties, the one discovery
// actually reads (a 404 propstat for an unsupported property is ignored).
func (e *davEntry) props() davProps {
	for _, ps := range e.PropStat {
		if strings.Contains(ps.Status, " 2") {
			return ps.Prop
		}
	}
	if len(e.PropStat) > 0 {
		return e.PropStat[0].Prop
	}
	return davProps{}
}
