package image

// MediaTypes accepted for manifests, per the Distribution v2 and OCI specs.
const (
	MediaTypeDockerManifestV2 = "application/vnd.docker.distribution.manifest.v2+json"
	MediaTypeOCIManifestV1    = "application/vnd.oci.image.manifest.v1+json"
	MediaTypeDockerManifestList = "application/vnd.docker.distribution.manifest.list.v2+json"
	MediaTypeOCIImageIndex      = "application/vnd.oci.image.index.v1+json"
)

// ManifestAccept is the Accept header value for the initial manifest
// request: both single manifests and manifest lists/indexes.
const ManifestAccept = MediaTypeDockerManifestV2 + "," + MediaTypeOCIManifestV1 + "," +
	MediaTypeDockerManifestList + "," + MediaTypeOCIImageIndex

// SingleManifestAccept restricts the Accept header to single manifests,
// used for the narrowed re-fetch once a platform has been selected.
const SingleManifestAccept = MediaTypeDockerManifestV2 + "," + MediaTypeOCIManifestV1

// Descriptor is a content descriptor: a digest plus size and media type.
type Descriptor struct {
	MediaType   string            `json:"mediaType"`
	Digest      string            `json:"digest"`
	Size        int64             `json:"size"`
	URLs        []string          `json:"urls,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Manifest is a single-platform image manifest.
type Manifest struct {
	SchemaVersion int               `json:"schemaVersion"`
	MediaType     string            `json:"mediaType"`
	Config        Descriptor        `json:"config"`
	Layers        []Descriptor      `json:"layers"`
	Annotations   map[string]string `json:"annotations,omitempty"`
}

// Platform identifies the OS/architecture an index entry targets.
type Platform struct {
	Architecture string   `json:"architecture"`
	OS           string   `json:"os"`
	OSVersion    string   `json:"os.version,omitempty"`
	OSFeatures   []string `json:"os.features,omitempty"`
	Variant      string   `json:"variant,omitempty"`
	Features     []string `json:"features,omitempty"`
}

// ManifestDescriptor is an Index entry: a manifest digest plus the
// platform it targets.
type ManifestDescriptor struct {
	MediaType   string            `json:"mediaType"`
	Digest      string            `json:"digest"`
	Size        int64             `json:"size"`
	Platform    *Platform         `json:"platform,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// Index is a multi-arch manifest list/index.
type Index struct {
	SchemaVersion int                  `json:"schemaVersion"`
	MediaType     string               `json:"mediaType"`
	Manifests     []ManifestDescriptor `json:"manifests"`
	Annotations   map[string]string    `json:"annotations,omitempty"`
}

// ConfigSpec is the "config" object inside an OCI image config blob.
type ConfigSpec struct {
	User         string            `json:"User,omitempty"`
	ExposedPorts map[string]struct{} `json:"ExposedPorts,omitempty"`
	Env          []string          `json:"Env,omitempty"`
	Entrypoint   []string          `json:"Entrypoint,omitempty"`
	Cmd          []string          `json:"Cmd,omitempty"`
	Volumes      map[string]struct{} `json:"Volumes,omitempty"`
	WorkingDir   string            `json:"WorkingDir,omitempty"`
	Labels       map[string]string `json:"Labels,omitempty"`
	StopSignal   string            `json:"StopSignal,omitempty"`
}

// RootFS describes the layer chain in an OCI image config blob.
type RootFS struct {
	Type    string   `json:"type"`
	DiffIDs []string `json:"diff_ids"`
}

// Config is the full OCI image config blob (the thing whose digest is
// the image ID).
type Config struct {
	Architecture string      `json:"architecture"`
	OS           string      `json:"os"`
	Config       *ConfigSpec `json:"config,omitempty"`
	RootFS       RootFS      `json:"rootfs"`
	History      []History   `json:"history,omitempty"`
}

// History is a single build-step history entry.
type History struct {
	Created    string `json:"created,omitempty"`
	CreatedBy  string `json:"created_by,omitempty"`
	Comment    string `json:"comment,omitempty"`
	EmptyLayer bool   `json:"empty_layer,omitempty"`
}
