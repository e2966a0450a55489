package devices

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fgpanels/switchpanel/internal/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths are tried, in order, for a relative mapping path.
var DefaultSearchPaths = []string{".", "data"}

type MappingLoader struct {
	validator   *Validator
	resolver    *Resolver
	searchPaths []string
	logger      *zap.Logger
}

func NewMappingLoader(names *types.NameTable, searchPaths []string, logger *zap.Logger) (*MappingLoader, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &MappingLoader{
		validator:   validator,
		resolver:    NewResolver(names),
		searchPaths: searchPaths,
		logger:      logger,
	}, nil
}

// Load reads, validates and resolves a mapping document. The format is
// chosen by extension: .yaml/.yml is YAML, anything else is XML.
func (l *MappingLoader) Load(mappingPath string) (*types.Mapping, error) {
	data, foundPath, err := l.read(mappingPath)
	if err != nil {
		return nil, types.NewError(types.KindConfig, "load mapping",
			fmt.Errorf("%w: '%s' (searched in: %v)", types.ErrMappingNotFound, mappingPath, l.searchPaths))
	}

	var def *types.MappingDefinition
	switch strings.ToLower(filepath.Ext(foundPath)) {
	case ".yaml", ".yml":
		def, err = DecodeYAML(data)
	default:
		def, err = DecodeXML(bytes.NewReader(data))
	}
	if err != nil {
		return nil, types.NewError(types.KindConfig, "decode "+foundPath,
			fmt.Errorf("%w: %v", types.ErrInvalidMapping, err))
	}

	if err := l.validator.ValidateDefinition(def); err != nil {
		return nil, types.NewError(types.KindConfig, "validate "+foundPath,
			fmt.Errorf("%w: %v", types.ErrInvalidMapping, err))
	}

	mapping, err := l.resolver.Resolve(def)
	if err != nil {
		return nil, types.NewError(types.KindConfig, "resolve "+foundPath, err)
	}

	l.logger.Info("Mapping loaded",
		zap.String("path", foundPath),
		zap.String("plane", mapping.Plane),
		zap.Int("switches", len(mapping.Switches)))

	return mapping, nil
}

func (l *MappingLoader) read(mappingPath string) ([]byte, string, error) {
	if filepath.IsAbs(mappingPath) || len(l.searchPaths) == 0 {
		data, err := os.ReadFile(mappingPath)
		return data, mappingPath, err
	}

	var firstErr error
	for _, searchPath := range l.searchPaths {
		fullPath := filepath.Join(searchPath, mappingPath)
		data, err := os.ReadFile(fullPath)
		if err == nil {
			return data, fullPath, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}

	return nil, "", firstErr
}

// element modes of the XML mapping document
type xmlMode int

const (
	modeNone xmlMode = iota
	modePlane
	modeSwitch
	modeMagnetos
	modeStarter
	modeGearRetarget
	modeGearPrimer
)

// DecodeXML decodes the original <plane> mapping format:
//
//	<plane>Cessna 172P
//	  <switch name="BATTERY">/controls/electric/battery-switch</switch>
//	  <magnetos>/controls/engines/engine/magnetos</magnetos>
//	  <starter>/controls/engines/engine/starter</starter>
//	</plane>
//
// Any element other than plane, switch, magnetos, starter, gear-retarget
// and gear-primer is rejected.
func DecodeXML(r io.Reader) (*types.MappingDefinition, error) {
	decoder := xml.NewDecoder(r)
	def := &types.MappingDefinition{}

	mode := modeNone
	switchName := ""

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "plane":
				mode = modePlane
			case "switch":
				switchName = ""
				for _, attr := range t.Attr {
					if attr.Name.Local == "name" {
						switchName = attr.Value
					}
				}
				mode = modeSwitch
			case "magnetos":
				mode = modeMagnetos
			case "starter":
				mode = modeStarter
			case "gear-retarget":
				mode = modeGearRetarget
			case "gear-primer":
				mode = modeGearPrimer
			default:
				return nil, fmt.Errorf("unexpected element <%s>", t.Name.Local)
			}

		case xml.EndElement:
			mode = modeNone

		case xml.CharData:
			data := strings.TrimSpace(string(t))
			if data == "" {
				continue
			}
			switch mode {
			case modePlane:
				def.Plane = data
			case modeSwitch:
				def.Switches = append(def.Switches, types.SwitchBinding{Name: switchName, Command: data})
			case modeMagnetos:
				def.Magnetos = data
			case modeStarter:
				def.Starter = data
			case modeGearRetarget:
				def.GearRetarget = data
			case modeGearPrimer:
				def.GearPrimer = data
			}
		}
	}

	return def, nil
}

// DecodeYAML decodes the YAML form of a mapping document.
func DecodeYAML(data []byte) (*types.MappingDefinition, error) {
	var def types.MappingDefinition

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&def); err != nil {
		return nil, err
	}

	return &def, nil
}
